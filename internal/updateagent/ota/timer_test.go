package ota

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestOneShotFiresOnce(t *testing.T) {
	var fired atomic.Int32

	timer := NewOneShot()
	timer.Arm(10*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Errorf("fired %d times, want 1", n)
	}
}

func TestOneShotStop(t *testing.T) {
	var fired atomic.Int32

	timer := NewOneShot()
	timer.Arm(30*time.Millisecond, func() { fired.Add(1) })
	timer.Stop()

	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("fired %d times after Stop, want 0", n)
	}
}

func TestOneShotRearmReplacesCallback(t *testing.T) {
	var first, second atomic.Int32

	timer := NewOneShot()
	timer.Arm(time.Hour, func() { first.Add(1) })
	timer.Arm(10*time.Millisecond, func() { second.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if n := first.Load(); n != 0 {
		t.Errorf("replaced callback fired %d times, want 0", n)
	}
	if n := second.Load(); n != 1 {
		t.Errorf("current callback fired %d times, want 1", n)
	}
}

func TestOneShotReusableAfterFire(t *testing.T) {
	var fired atomic.Int32

	timer := NewOneShot()
	timer.Arm(5*time.Millisecond, func() { fired.Add(1) })
	time.Sleep(50 * time.Millisecond)

	timer.Arm(5*time.Millisecond, func() { fired.Add(1) })
	time.Sleep(50 * time.Millisecond)

	if n := fired.Load(); n != 2 {
		t.Errorf("fired %d times across two arms, want 2", n)
	}
}
