package ota

import (
	"context"
	"errors"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/pkg/log"
)

// ProvenanceTracker decides, once per boot, whether the prior reset was the
// tail end of a firmware update. A software reset into a different boot
// partition than the one on record means the device just switched banks.
type ProvenanceTracker struct {
	hal    core.HAL
	store  core.Store
	logger log.Logger
}

func NewProvenanceTracker(hal core.HAL, store core.Store) *ProvenanceTracker {
	return &ProvenanceTracker{
		hal:    hal,
		store:  store,
		logger: log.WithName("provenance"),
	}
}

// FirstBootAfterUpdate reports whether this boot is the first on a freshly
// activated firmware image. Storage trouble is fail-safe: the tracker
// reports false rather than blocking startup.
func (t *ProvenanceTracker) FirstBootAfterUpdate(ctx context.Context) bool {
	cause := t.hal.ResetCause()
	if cause != core.ResetCauseSoftware {
		t.logger.Debug("reset not software-initiated", "cause", cause)
		return false
	}

	current, err := t.hal.BootPartition()
	if err != nil {
		t.logger.Error(err, "cannot determine boot partition")
		return false
	}

	recorded, err := t.store.Get(ctx, core.KeyBootPartition)
	switch {
	case errors.Is(err, core.ErrKeyNotFound):
		// First run on this device: record and assume the software reset
		// that got us here installed the running image.
		t.record(ctx, current)
		return true
	case err != nil:
		t.logger.Error(err, "cannot read boot record, assuming no update")
		return false
	}

	if recorded == current {
		return false
	}

	t.logger.Info("boot partition changed", "from", recorded, "to", current)
	t.record(ctx, current)
	return true
}

func (t *ProvenanceTracker) record(ctx context.Context, partition string) {
	if err := t.store.Set(ctx, core.KeyBootPartition, partition); err != nil {
		t.logger.Error(err, "cannot record boot partition")
		return
	}
	if err := t.store.Commit(ctx); err != nil {
		t.logger.Error(err, "cannot commit boot record")
	}
}
