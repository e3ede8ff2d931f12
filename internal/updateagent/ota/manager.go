package ota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gatewing-io/gatewing/internal/pkg/metrics"
	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/internal/updateagent/transfer"
	"github.com/gatewing-io/gatewing/pkg/log"
)

// Config carries the update policy knobs.
type Config struct {
	// MaxAttempts bounds downloader retries per command.
	MaxAttempts int
	// AttemptTimeout is the per-attempt budget before the attempt is
	// forcibly failed.
	AttemptTimeout time.Duration
	// PerformInterval is the pause between transfer engine steps.
	PerformInterval time.Duration
	// RebootDelay is how long after finalization the reboot fires.
	RebootDelay time.Duration
}

// Manager is the update module: it owns the command listener and admits at
// most one in-flight update per device.
type Manager struct {
	cfg    Config
	engine transfer.Engine

	mu         sync.Mutex
	inProgress bool

	listener *Listener
	logger   log.Logger
}

func NewManager(engine transfer.Engine, cfg Config) *Manager {
	return &Manager{
		cfg:    cfg,
		engine: engine,
		logger: log.WithName("update"),
	}
}

func (m *Manager) Name() string { return "update" }

func (m *Manager) Setup(ctx context.Context, deps core.Deps) error {
	deviceKey, err := deps.HAL.MACAddress()
	if err != nil {
		return fmt.Errorf("resolve device key: %w", err)
	}

	downloader := NewDownloader(deps, m.engine, m.cfg.PerformInterval, m.cfg.AttemptTimeout)
	m.listener = NewListener(deviceKey, deps, downloader, m.cfg)
	return nil
}

func (m *Manager) Routes() map[core.EventType]core.HandlerFunc {
	return map[core.EventType]core.HandlerFunc{
		core.EventUpdateCommand: m.handleCommand,
	}
}

// handleCommand admits one update at a time. A command arriving while one is
// being serviced is rejected outright; the device is about to reboot anyway.
func (m *Manager) handleCommand(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	if m.inProgress {
		m.mu.Unlock()
		return fmt.Errorf("update already in progress")
	}
	m.inProgress = true
	m.mu.Unlock()

	metrics.UpdateInProgress.Set(1)

	err := m.listener.HandleCommand(ctx, payload)
	switch {
	case errors.Is(err, ErrNotAddressed):
		m.logger.Debug("command for another device, ignoring")
		err = nil
		fallthrough
	case errors.Is(err, ErrBadCommand):
		// Nothing was spawned; release the latch so a corrected command
		// can be accepted.
		m.mu.Lock()
		m.inProgress = false
		m.mu.Unlock()
		metrics.UpdateInProgress.Set(0)
	default:
		// Finalized, for better or worse: the reboot timer is armed and
		// the latch stays held until the device restarts.
		if err != nil {
			m.logger.Error(err, "update failed, rebooting into current image")
		}
	}
	return err
}
