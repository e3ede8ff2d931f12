package core

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Store.Get for keys that were never set.
var ErrKeyNotFound = errors.New("key not found")

// Store is crash-surviving key/value persistence. Set takes effect for
// readers immediately; Commit flushes to durable media.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Commit(ctx context.Context) error
	Close() error
}

// Keys used by the update agent.
const (
	// KeyBootPartition records the boot partition address observed by the
	// boot provenance tracker.
	KeyBootPartition = "boot_partition_addr"

	// KeyLastUpdateTime records when the last firmware update completed.
	KeyLastUpdateTime = "last_update_time"
)
