package ota

import (
	"context"
	"sync"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/internal/updateagent/transfer"
)

type fakeStore struct {
	mu        sync.Mutex
	data      map[string]string
	commits   int
	getErr    error
	setErr    error
	commitErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}}
}

func (s *fakeStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return "", core.ErrKeyNotFound
	}
	return v, nil
}

func (s *fakeStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *fakeStore) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits++
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

type fakeHAL struct {
	mu sync.Mutex

	mac        string
	version    string
	resetCause core.ResetCause
	partition  string

	feeds      int
	registered int
	dropped    int
	rebooted   int
	installs   []string
	switches   int
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{
		mac:        "AA:BB:CC:DD:EE:FF",
		version:    "1.0.0",
		resetCause: core.ResetCausePowerOn,
		partition:  "0x10000",
	}
}

func (h *fakeHAL) MACAddress() (string, error)      { return h.mac, nil }
func (h *fakeHAL) FirmwareVersion() string          { return h.version }
func (h *fakeHAL) ResetCause() core.ResetCause      { return h.resetCause }
func (h *fakeHAL) BootPartition() (string, error)   { return h.partition, nil }
func (h *fakeHAL) SwitchBootSlot() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.switches++
	return nil
}

func (h *fakeHAL) InstallImage(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.installs = append(h.installs, path)
	return nil
}

func (h *fakeHAL) RegisterWatchdog() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered++
	return nil
}

func (h *fakeHAL) FeedWatchdog() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feeds++
	return nil
}

func (h *fakeHAL) UnregisterWatchdog() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered--
	return nil
}

func (h *fakeHAL) DropNetworkLink() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropped++
	return nil
}

func (h *fakeHAL) Reboot() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rebooted++
	return nil
}

func (h *fakeHAL) counts() (dropped, rebooted int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped, h.rebooted
}

type fakeBus struct {
	mu       sync.Mutex
	statuses []string
	stopped  int
}

func (b *fakeBus) Send(ctx context.Context, event core.EventType, payload []byte) error {
	return nil
}

func (b *fakeBus) SendJSON(ctx context.Context, event core.EventType, v any) error {
	return nil
}

func (b *fakeBus) PublishStatus(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, text)
	return nil
}

func (b *fakeBus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped++
}

func (b *fakeBus) stopCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

func (b *fakeBus) statusLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.statuses))
	copy(out, b.statuses)
	return out
}

// fakeSession scripts a sequence of Perform results. A non-nil gate blocks
// every Perform call until the test feeds or closes it.
type fakeSession struct {
	mu        sync.Mutex
	script    []transfer.Status
	gate      chan struct{}
	step      int
	complete  bool
	received  int64
	finishErr error
	err       error
	finished  int
	aborted   int
}

func (s *fakeSession) Perform() transfer.Status {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step >= len(s.script) {
		return transfer.StatusError
	}
	st := s.script[s.step]
	s.step++
	return st
}

func (s *fakeSession) IsComplete() bool { return s.complete }

func (s *fakeSession) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
	return s.finishErr
}

func (s *fakeSession) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted++
}

func (s *fakeSession) Received() int64 { return s.received }
func (s *fakeSession) Err() error      { return s.err }

// fakeEngine hands out scripted sessions in order, failing Begin once the
// script runs out or when beginErr is set. A non-nil beginGate blocks Begin
// until the test feeds or closes it.
type fakeEngine struct {
	mu        sync.Mutex
	sessions  []*fakeSession
	begun     []string
	beginErr  error
	beginGate chan struct{}
}

func (e *fakeEngine) Begin(ctx context.Context, cfg transfer.Config) (transfer.Session, error) {
	if e.beginGate != nil {
		<-e.beginGate
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.begun = append(e.begun, cfg.URL)
	if e.beginErr != nil {
		return nil, e.beginErr
	}
	if len(e.sessions) == 0 {
		return nil, context.Canceled
	}
	sess := e.sessions[0]
	e.sessions = e.sessions[1:]
	return sess, nil
}

func (e *fakeEngine) beginURLs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.begun))
	copy(out, e.begun)
	return out
}

func testDeps(hal *fakeHAL, store *fakeStore, bus *fakeBus) core.Deps {
	return core.Deps{HAL: hal, Store: store, Bus: bus}
}
