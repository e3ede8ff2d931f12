package ota

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOutcomeSignalPostWait(t *testing.T) {
	s := NewOutcomeSignal()
	s.Post(OutcomeOK)

	o, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if o != OutcomeOK {
		t.Errorf("outcome = %v, want %v", o, OutcomeOK)
	}
}

func TestOutcomeSignalAutoClear(t *testing.T) {
	s := NewOutcomeSignal()
	s.Post(OutcomeFailed)

	if _, err := s.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	// Consumed: a second wait must block until the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Wait err = %v, want deadline exceeded", err)
	}
}

func TestOutcomeSignalWakesBlockedWaiter(t *testing.T) {
	s := NewOutcomeSignal()

	got := make(chan Outcome, 1)
	go func() {
		o, err := s.Wait(context.Background())
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
		got <- o
	}()

	time.Sleep(10 * time.Millisecond)
	s.Post(OutcomeFailed)

	select {
	case o := <-got:
		if o != OutcomeFailed {
			t.Errorf("outcome = %v, want %v", o, OutcomeFailed)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestOutcomeSignalMergesBits(t *testing.T) {
	s := NewOutcomeSignal()
	s.Post(OutcomeOK)
	s.Post(OutcomeFailed)

	o, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if o&OutcomeOK == 0 || o&OutcomeFailed == 0 {
		t.Errorf("outcome = %b, want both bits", o)
	}
}

func TestOutcomeSignalClear(t *testing.T) {
	s := NewOutcomeSignal()
	s.Post(OutcomeFailed)
	s.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait after Clear err = %v, want deadline exceeded", err)
	}
}
