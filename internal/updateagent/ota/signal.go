package ota

import (
	"context"
	"sync"
)

// Outcome is a bitmask of terminal attempt results.
type Outcome uint8

const (
	// OutcomeOK means the image was transferred, verified and committed.
	OutcomeOK Outcome = 1 << iota
	// OutcomeFailed means the attempt died: transfer error, incomplete
	// image, commit failure or timeout.
	OutcomeFailed
)

// OutcomeSignal carries attempt outcomes from the download worker (and the
// attempt timer) to the command listener. Posting never blocks; waiting
// consumes the posted bits so the signal can be reused across attempts.
type OutcomeSignal struct {
	mu     sync.Mutex
	bits   Outcome
	notify chan struct{}
}

func NewOutcomeSignal() *OutcomeSignal {
	return &OutcomeSignal{notify: make(chan struct{}, 1)}
}

// Post records an outcome and wakes a waiter, if any.
func (s *OutcomeSignal) Post(o Outcome) {
	s.mu.Lock()
	s.bits |= o
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Wait blocks until an outcome is posted or ctx expires. The returned
// outcome is cleared from the signal.
func (s *OutcomeSignal) Wait(ctx context.Context) (Outcome, error) {
	for {
		s.mu.Lock()
		if s.bits != 0 {
			o := s.bits
			s.bits = 0
			s.mu.Unlock()
			return o, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-s.notify:
		}
	}
}

// Clear discards any posted outcome and any pending wakeup.
func (s *OutcomeSignal) Clear() {
	s.mu.Lock()
	s.bits = 0
	s.mu.Unlock()

	select {
	case <-s.notify:
	default:
	}
}
