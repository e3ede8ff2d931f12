package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
)

const stateFileName = "state.json"

// fileStore is the durable store for hosts without a local redis, and the
// fixture used by tests. Set mutates an in-memory map; Commit writes the
// whole map atomically (temp file + rename).
type fileStore struct {
	path string

	mu    sync.Mutex
	state map[string]string
}

var _ core.Store = (*fileStore)(nil)

// NewFile opens (or creates) the state file under dir.
func NewFile(dir string) (core.Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	s := &fileStore{
		path:  filepath.Join(dir, stateFileName),
		state: make(map[string]string),
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("corrupt state file %s: %w", s.path, err)
	}
	return s, nil
}

func (s *fileStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.state[key]
	if !ok {
		return "", core.ErrKeyNotFound
	}
	return val, nil
}

func (s *fileStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state[key] = value
	return nil
}

func (s *fileStore) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error {
	return s.Commit(context.Background())
}
