package updateagent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gatewing-io/gatewing/internal/pkg/metrics"
	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/internal/updateagent/hub"
	"github.com/gatewing-io/gatewing/internal/updateagent/ota"
	"github.com/gatewing-io/gatewing/pkg/log"
)

// Registration is the payload announcing this device to the fleet backend.
type Registration struct {
	DeviceKey       string `json:"device_key"`
	FirmwareVersion string `json:"firmware_version"`
	BootPartition   string `json:"boot_partition"`
	Updated         bool   `json:"updated"`
	LastUpdateTime  string `json:"last_update_time,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}

// OnlineStatus is the retained presence payload; its counterpart with
// Online=false is the client's will message.
type OnlineStatus struct {
	DeviceKey string `json:"device_key"`
	Online    bool   `json:"online"`
	Reason    string `json:"reason,omitempty"`
}

// Agent is the update agent process: provenance check at boot, module
// wiring, bus connection and the metrics endpoint.
type Agent struct {
	deviceKey string
	hal       core.HAL
	store     core.Store
	hub       *hub.Hub
	modules   []core.Module
	msrv      *metrics.Server
}

func NewAgent(deviceKey string, hal core.HAL, store core.Store, h *hub.Hub, msrv *metrics.Server, modules ...core.Module) *Agent {
	return &Agent{
		deviceKey: deviceKey,
		hal:       hal,
		store:     store,
		hub:       h,
		modules:   modules,
		msrv:      msrv,
	}
}

func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting gatewing-update-agent", "deviceKey", a.deviceKey, "version", a.hal.FirmwareVersion())

	// Provenance runs before anything touches the bus so the registration
	// packet can report whether this boot completed an update.
	updated := ota.NewProvenanceTracker(a.hal, a.store).FirstBootAfterUpdate(ctx)
	if updated {
		log.Info("First boot on freshly installed firmware")
	}

	deps := core.Deps{HAL: a.hal, Store: a.store, Bus: a.hub}
	for _, m := range a.modules {
		if err := m.Setup(ctx, deps); err != nil {
			return fmt.Errorf("module %s setup: %w", m.Name(), err)
		}

		for event, handler := range m.Routes() {
			if err := a.hub.Register(event, handler); err != nil {
				return fmt.Errorf("module %s register event %s: %w", m.Name(), event, err)
			}
		}
	}

	if err := a.hub.Start(ctx); err != nil {
		return err
	}
	defer a.hub.Stop()
	defer func() {
		if err := a.store.Close(); err != nil {
			log.Error(err, "Closing state store")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if a.msrv != nil {
		g.Go(func() error {
			return a.msrv.Start(gctx)
		})
	}

	g.Go(func() error {
		a.registerIdentity(gctx, updated)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Agent shutting down...")
		return nil
	})

	return g.Wait()
}

// registerIdentity announces the device and marks it online. Delivery rides
// on QoS 1; there is no application-level retry.
func (a *Agent) registerIdentity(ctx context.Context, updated bool) {
	reg := Registration{
		DeviceKey:       a.deviceKey,
		FirmwareVersion: a.hal.FirmwareVersion(),
		Updated:         updated,
		Timestamp:       time.Now().Unix(),
	}

	if partition, err := a.hal.BootPartition(); err == nil {
		reg.BootPartition = partition
	}
	if last, err := ota.LastUpdateTime(ctx, a.store); err == nil {
		reg.LastUpdateTime = last
	}

	if err := a.hub.SendJSON(ctx, core.EventRegister, reg); err != nil {
		log.Error(err, "Failed to send registration request")
		return
	}
	log.Info("Sent registration request", "version", reg.FirmwareVersion, "updated", updated)

	online := OnlineStatus{DeviceKey: a.deviceKey, Online: true}
	if err := a.hub.SendJSON(ctx, core.EventOnline, online); err != nil {
		log.Error(err, "Failed to publish online status")
	}
}
