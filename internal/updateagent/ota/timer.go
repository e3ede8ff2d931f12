package ota

import (
	"sync"
	"time"
)

// OneShot is a reusable single-fire timer. It is created disarmed; Arm
// starts (or restarts) the countdown with a fresh callback. A OneShot is
// allocated once and rearmed across attempts rather than recreated.
type OneShot struct {
	mu sync.Mutex
	t  *time.Timer
	fn func()
}

func NewOneShot() *OneShot {
	return &OneShot{}
}

// Arm schedules fn to run once after d, replacing any previous schedule.
func (o *OneShot) Arm(d time.Duration, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.fn = fn
	if o.t == nil {
		o.t = time.AfterFunc(d, o.fire)
		return
	}
	o.t.Stop()
	o.t.Reset(d)
}

// Stop cancels a pending fire. A callback already started is not interrupted.
func (o *OneShot) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.t != nil {
		o.t.Stop()
	}
}

func (o *OneShot) fire() {
	o.mu.Lock()
	fn := o.fn
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}
