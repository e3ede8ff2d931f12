package ota

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/internal/updateagent/transfer"
)

func steps(n int, terminal transfer.Status) []transfer.Status {
	script := make([]transfer.Status, 0, n+1)
	for i := 0; i < n; i++ {
		script = append(script, transfer.StatusInProgress)
	}
	return append(script, terminal)
}

func runAttempt(t *testing.T, d *Downloader, url string) Outcome {
	t.Helper()

	timer := NewOneShot()
	defer timer.Stop()

	var once sync.Once
	got := make(chan Outcome, 1)
	post := func(o Outcome) {
		once.Do(func() { got <- o })
	}

	d.Run(context.Background(), url, timer, post)

	select {
	case o := <-got:
		return o
	case <-time.After(time.Second):
		t.Fatal("no outcome posted")
		return 0
	}
}

func TestDownloaderSuccess(t *testing.T) {
	hal := newFakeHAL()
	store := newFakeStore()
	bus := &fakeBus{}
	sess := &fakeSession{script: steps(3, transfer.StatusOK), complete: true, received: 4096}
	engine := &fakeEngine{sessions: []*fakeSession{sess}}

	d := NewDownloader(testDeps(hal, store, bus), engine, time.Millisecond, time.Minute)

	if o := runAttempt(t, d, "https://x/fw.bin"); o != OutcomeOK {
		t.Fatalf("outcome = %v, want %v", o, OutcomeOK)
	}

	if sess.finished != 1 {
		t.Errorf("Finish called %d times, want 1", sess.finished)
	}
	if hal.feeds != 3 {
		t.Errorf("watchdog fed %d times, want 3", hal.feeds)
	}
	if hal.registered != 0 {
		t.Errorf("watchdog registration leaked: %d", hal.registered)
	}
	if _, ok := store.get(core.KeyLastUpdateTime); !ok {
		t.Error("update time not persisted")
	}

	statuses := bus.statusLog()
	if len(statuses) == 0 || statuses[0] != "download started" {
		t.Errorf("statuses = %v, want leading start message", statuses)
	}
	if !strings.HasPrefix(statuses[len(statuses)-1], "download completed in ") {
		t.Errorf("final status = %q", statuses[len(statuses)-1])
	}
}

func TestDownloaderPublishesProgress(t *testing.T) {
	hal := newFakeHAL()
	bus := &fakeBus{}
	sess := &fakeSession{script: steps(250, transfer.StatusOK), complete: true, received: 1 << 20}
	engine := &fakeEngine{sessions: []*fakeSession{sess}}

	d := NewDownloader(testDeps(hal, newFakeStore(), bus), engine, 0, time.Minute)

	if o := runAttempt(t, d, "https://x/fw.bin"); o != OutcomeOK {
		t.Fatalf("outcome = %v, want %v", o, OutcomeOK)
	}

	// 250 steps cross the publish cadence twice.
	progress := regexp.MustCompile(`^downloading, \d{2}:\d{2} elapsed, \d+ bytes$`)
	var matched int
	for _, s := range bus.statusLog() {
		if progress.MatchString(s) {
			matched++
		}
	}
	if matched != 2 {
		t.Errorf("progress publishes = %d, want 2 (statuses: %v)", matched, bus.statusLog())
	}
}

func TestFormatMinSec(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{9 * time.Second, "00:09"},
		{75 * time.Second, "01:15"},
		{61 * time.Minute, "61:00"},
	}
	for _, tt := range tests {
		if got := formatMinSec(tt.d); got != tt.want {
			t.Errorf("formatMinSec(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatHourMinSec(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{75 * time.Second, "00:01:15"},
		{3*time.Hour + 4*time.Minute + 5*time.Second, "03:04:05"},
	}
	for _, tt := range tests {
		if got := formatHourMinSec(tt.d); got != tt.want {
			t.Errorf("formatHourMinSec(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDownloaderBeginFailure(t *testing.T) {
	engine := &fakeEngine{beginErr: errors.New("tls handshake failed")}
	d := NewDownloader(testDeps(newFakeHAL(), newFakeStore(), &fakeBus{}), engine, time.Millisecond, time.Minute)

	if o := runAttempt(t, d, "https://x/fw.bin"); o != OutcomeFailed {
		t.Errorf("outcome = %v, want %v", o, OutcomeFailed)
	}
}

func TestDownloaderPerformFailure(t *testing.T) {
	sess := &fakeSession{script: steps(2, transfer.StatusError), err: errors.New("connection reset")}
	engine := &fakeEngine{sessions: []*fakeSession{sess}}
	d := NewDownloader(testDeps(newFakeHAL(), newFakeStore(), &fakeBus{}), engine, time.Millisecond, time.Minute)

	if o := runAttempt(t, d, "https://x/fw.bin"); o != OutcomeFailed {
		t.Errorf("outcome = %v, want %v", o, OutcomeFailed)
	}
	if sess.aborted == 0 {
		t.Error("failed session was not released")
	}
	if sess.finished != 0 {
		t.Error("failed session must not be finished")
	}
}

func TestDownloaderIncompleteTransfer(t *testing.T) {
	sess := &fakeSession{script: steps(0, transfer.StatusOK), complete: false, received: 100}
	engine := &fakeEngine{sessions: []*fakeSession{sess}}
	d := NewDownloader(testDeps(newFakeHAL(), newFakeStore(), &fakeBus{}), engine, time.Millisecond, time.Minute)

	if o := runAttempt(t, d, "https://x/fw.bin"); o != OutcomeFailed {
		t.Errorf("outcome = %v, want %v", o, OutcomeFailed)
	}
	if sess.finished != 0 {
		t.Error("incomplete session must not be finished")
	}
}

func TestDownloaderFinishFailure(t *testing.T) {
	sess := &fakeSession{script: steps(0, transfer.StatusOK), complete: true, finishErr: errors.New("bank write failed")}
	engine := &fakeEngine{sessions: []*fakeSession{sess}}
	store := newFakeStore()
	d := NewDownloader(testDeps(newFakeHAL(), store, &fakeBus{}), engine, time.Millisecond, time.Minute)

	if o := runAttempt(t, d, "https://x/fw.bin"); o != OutcomeFailed {
		t.Errorf("outcome = %v, want %v", o, OutcomeFailed)
	}
	if _, ok := store.get(core.KeyLastUpdateTime); ok {
		t.Error("update time persisted despite finish failure")
	}
}

func TestDownloaderPersistenceFailure(t *testing.T) {
	sess := &fakeSession{script: steps(0, transfer.StatusOK), complete: true}
	engine := &fakeEngine{sessions: []*fakeSession{sess}}
	store := newFakeStore()
	store.commitErr = errors.New("flash full")
	d := NewDownloader(testDeps(newFakeHAL(), store, &fakeBus{}), engine, time.Millisecond, time.Minute)

	// The image committed, but without a durable completion record the
	// attempt is reported failed.
	if o := runAttempt(t, d, "https://x/fw.bin"); o != OutcomeFailed {
		t.Errorf("outcome = %v, want %v", o, OutcomeFailed)
	}
	if sess.finished != 1 {
		t.Errorf("Finish called %d times, want 1", sess.finished)
	}
}

func TestDownloaderTimeout(t *testing.T) {
	// 50 steps at 2ms each outlive a 10ms budget by a wide margin; the
	// timer's Failed wins even though the transfer would end in Ok.
	sess := &fakeSession{script: steps(50, transfer.StatusOK), complete: true}
	engine := &fakeEngine{sessions: []*fakeSession{sess}}
	d := NewDownloader(testDeps(newFakeHAL(), newFakeStore(), &fakeBus{}), engine, 2*time.Millisecond, 10*time.Millisecond)

	if o := runAttempt(t, d, "https://x/fw.bin"); o != OutcomeFailed {
		t.Errorf("outcome = %v, want %v", o, OutcomeFailed)
	}
	if sess.aborted == 0 {
		t.Error("timed-out session was not aborted")
	}
}

func TestDownloaderTimeoutDuringSetup(t *testing.T) {
	// The budget covers session setup: with Begin stalled, the timer must
	// still post Failed, and the session handed back afterwards is released
	// without being installed.
	gate := make(chan struct{})
	sess := &fakeSession{script: steps(0, transfer.StatusOK), complete: true}
	engine := &fakeEngine{sessions: []*fakeSession{sess}, beginGate: gate}
	d := NewDownloader(testDeps(newFakeHAL(), newFakeStore(), &fakeBus{}), engine, time.Millisecond, 10*time.Millisecond)

	timer := NewOneShot()
	defer timer.Stop()

	var once sync.Once
	got := make(chan Outcome, 1)
	post := func(o Outcome) {
		once.Do(func() { got <- o })
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(context.Background(), "https://x/fw.bin", timer, post)
	}()

	select {
	case o := <-got:
		if o != OutcomeFailed {
			t.Fatalf("outcome = %v, want %v", o, OutcomeFailed)
		}
	case <-time.After(time.Second):
		t.Fatal("no outcome posted while session setup stalled")
	}

	close(gate)
	<-done

	if sess.aborted == 0 {
		t.Error("late session was not released")
	}
	if sess.finished != 0 {
		t.Error("late session must not be finished")
	}
}
