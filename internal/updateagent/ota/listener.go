package ota

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gatewing-io/gatewing/internal/pkg/metrics"
	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/pkg/log"
)

// maxURLBytes caps the source URL taken from a command. Longer values are
// truncated, not rejected.
const maxURLBytes = 511

// waitSlack bounds the listener's wait beyond the attempt budget. A worker
// torn down without posting would otherwise block the listener forever.
const waitSlack = 30 * time.Second

// ErrBadCommand marks malformed command payloads. These abort before any
// downloader is spawned and do not consume retries.
var ErrBadCommand = fmt.Errorf("bad update command")

// ErrNotAddressed means the command payload carries no entry for this device.
var ErrNotAddressed = fmt.Errorf("%w: not addressed to this device", ErrBadCommand)

// RetryState tracks attempts for one command.
type RetryState struct {
	Attempts    int
	MaxAttempts int
}

// Exhausted reports whether the retry budget is spent.
func (r RetryState) Exhausted() bool {
	return r.Attempts >= r.MaxAttempts
}

// Listener services one update command end to end: parse, resolve this
// device's URL, run the downloader with retries, finalize into a reboot.
type Listener struct {
	deviceKey   string
	maxAttempts int
	waitBudget  time.Duration
	rebootDelay time.Duration

	hal        core.HAL
	bus        core.Bus
	downloader *Downloader

	attemptTimer *OneShot
	rebootTimer  *OneShot

	logger log.Logger
}

func NewListener(deviceKey string, deps core.Deps, downloader *Downloader, cfg Config) *Listener {
	return &Listener{
		deviceKey:    deviceKey,
		maxAttempts:  cfg.MaxAttempts,
		waitBudget:   cfg.AttemptTimeout + waitSlack,
		rebootDelay:  cfg.RebootDelay,
		hal:          deps.HAL,
		bus:          deps.Bus,
		downloader:   downloader,
		attemptTimer: NewOneShot(),
		rebootTimer:  NewOneShot(),
		logger:       log.WithName("listener"),
	}
}

// HandleCommand parses a raw command payload and drives the update to a
// terminal state. Parse failures abort without consuming retries and return
// an error; downloader failures are retried up to the budget and always end
// in finalization, since the device must reboot to recover a half-written
// bank state either way.
func (l *Listener) HandleCommand(ctx context.Context, payload []byte) error {
	url, err := l.parseCommand(payload)
	if err != nil {
		return err
	}

	l.logger.Info("update command accepted", "url", url)

	retry := RetryState{MaxAttempts: l.maxAttempts}
	succeeded := false

	for !retry.Exhausted() {
		retry.Attempts++

		// Each attempt gets its own signal. A worker abandoned after a
		// budget-exceeded wait may still post later; binding it to the
		// attempt's signal keeps that post out of the next attempt.
		signal := NewOutcomeSignal()
		var once sync.Once
		post := func(o Outcome) {
			once.Do(func() { signal.Post(o) })
		}

		go l.downloader.Run(ctx, url, l.attemptTimer, post)

		outcome, err := l.waitOutcome(ctx, signal)
		switch {
		case err != nil:
			l.logger.Error(err, "no outcome from download worker", "attempt", retry.Attempts)
			metrics.UpdateAttemptsTotal.WithLabelValues("timeout").Inc()
		case outcome&OutcomeOK != 0:
			metrics.UpdateAttemptsTotal.WithLabelValues("ok").Inc()
			succeeded = true
		default:
			metrics.UpdateAttemptsTotal.WithLabelValues("failed").Inc()
			l.logger.Info("attempt failed", "attempt", retry.Attempts, "max", retry.MaxAttempts)
		}

		if succeeded {
			break
		}
	}

	l.finalize(succeeded, retry)
	if !succeeded {
		return fmt.Errorf("update failed after %d attempts", retry.Attempts)
	}
	return nil
}

// parseCommand extracts this device's source URL from the payload, a JSON
// object mapping device keys to URLs.
func (l *Listener) parseCommand(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrBadCommand)
	}

	var command map[string]any
	if err := json.Unmarshal(payload, &command); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCommand, err)
	}

	value, ok := command[l.deviceKey]
	if !ok {
		return "", ErrNotAddressed
	}
	url, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: value for %s is not a string", ErrBadCommand, l.deviceKey)
	}
	if len(url) > maxURLBytes {
		url = url[:maxURLBytes]
	}
	return url, nil
}

func (l *Listener) waitOutcome(ctx context.Context, signal *OutcomeSignal) (Outcome, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.waitBudget)
	defer cancel()
	return signal.Wait(waitCtx)
}

// finalize tears down connectivity and schedules the reboot. It runs on
// success and on retry exhaustion alike: a device that failed an update
// reboots back into its current image.
func (l *Listener) finalize(succeeded bool, retry RetryState) {
	l.logger.Info("finalizing update", "succeeded", succeeded, "attempts", retry.Attempts)

	l.bus.Stop()
	if err := l.hal.DropNetworkLink(); err != nil {
		l.logger.Error(err, "drop network link")
	}
	l.rebootTimer.Arm(l.rebootDelay, func() {
		if err := l.hal.Reboot(); err != nil {
			l.logger.Error(err, "reboot")
		}
	})
}
