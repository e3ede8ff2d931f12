package ota

import (
	"context"
	"fmt"
	"time"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
)

// timestampLayout is the on-store format of the last-update timestamp.
const timestampLayout = "2006-01-02_15-04-05"

// FormatTimestamp renders t in the persisted timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// RecordUpdateTime persists and commits the completion time of an update.
// It must succeed before the update is reported as complete.
func RecordUpdateTime(ctx context.Context, store core.Store, t time.Time) error {
	if err := store.Set(ctx, core.KeyLastUpdateTime, FormatTimestamp(t)); err != nil {
		return fmt.Errorf("persist update time: %w", err)
	}
	if err := store.Commit(ctx); err != nil {
		return fmt.Errorf("commit update time: %w", err)
	}
	return nil
}

// LastUpdateTime reads the persisted completion time of the most recent
// update. Returns core.ErrKeyNotFound when no update has ever completed.
func LastUpdateTime(ctx context.Context, store core.Store) (string, error) {
	return store.Get(ctx, core.KeyLastUpdateTime)
}
