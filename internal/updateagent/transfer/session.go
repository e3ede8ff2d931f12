package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/pkg/log"
)

// spoolSession is the staging machinery shared by all engines: it drains a
// byte source into a spool file one chunk per Perform step, then commits the
// staged image through the HAL on Finish.
type spoolSession struct {
	id  string
	hal core.HAL

	src      io.ReadCloser
	closeSrc sync.Once

	chunkSize int64
	expected  int64 // -1 when the source does not announce a size
	received  atomic.Int64

	aborted atomic.Bool

	mu       sync.Mutex
	spool    *os.File
	done     bool
	released bool
	lastErr  error
}

func newSpoolSession(hal core.HAL, src io.ReadCloser, expected int64, spoolDir string, chunkSize int64) (*spoolSession, error) {
	if err := os.MkdirAll(spoolDir, 0755); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create spool dir: %w", err)
	}
	spool, err := os.CreateTemp(spoolDir, "firmware-*.img")
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}

	return &spoolSession{
		id:        uuid.NewString(),
		hal:       hal,
		src:       src,
		chunkSize: chunkSize,
		expected:  expected,
		spool:     spool,
	}, nil
}

// ID identifies the session in logs.
func (s *spoolSession) ID() string {
	return s.id
}

func (s *spoolSession) Perform() Status {
	if s.aborted.Load() {
		s.setErr(ErrAborted)
		return StatusError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released || s.done {
		// Stepping a finished or released session is a caller bug; report
		// it as an error rather than looping forever.
		s.lastErr = ErrAborted
		return StatusError
	}

	n, err := io.CopyN(s.spool, s.src, s.chunkSize)
	s.received.Add(n)

	switch {
	case err == nil:
		return StatusInProgress
	case errors.Is(err, io.EOF):
		s.done = true
		return StatusOK
	default:
		if s.aborted.Load() {
			s.lastErr = ErrAborted
		} else {
			s.lastErr = err
		}
		return StatusError
	}
}

func (s *spoolSession) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.done {
		return false
	}
	return s.expected < 0 || s.received.Load() == s.expected
}

func (s *spoolSession) Finish() error {
	s.closeSrc.Do(func() { _ = s.src.Close() })

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrAborted
	}
	s.released = true

	path := s.spool.Name()
	if err := s.spool.Sync(); err != nil {
		_ = s.spool.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to sync spool file: %w", err)
	}
	if err := s.spool.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to close spool file: %w", err)
	}
	defer func() { _ = os.Remove(path) }()

	if err := s.hal.InstallImage(path); err != nil {
		return err
	}
	return s.hal.SwitchBootSlot()
}

func (s *spoolSession) Abort() {
	s.aborted.Store(true)
	// Closing the source unblocks any Perform stuck on a network read.
	s.closeSrc.Do(func() { _ = s.src.Close() })

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}
	s.released = true

	path := s.spool.Name()
	_ = s.spool.Close()
	_ = os.Remove(path)
	log.Debug("Transfer session aborted", "session", s.id, "received", s.received.Load())
}

func (s *spoolSession) Received() int64 {
	return s.received.Load()
}

func (s *spoolSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *spoolSession) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		s.lastErr = err
	}
}
