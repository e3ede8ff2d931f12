package ota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/gatewing-io/gatewing/internal/pkg/metrics"
	fsmutil "github.com/gatewing-io/gatewing/internal/pkg/util/fsm"
	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/internal/updateagent/transfer"
	"github.com/gatewing-io/gatewing/pkg/log"
)

const (
	phaseBegun        = "begun"
	phaseTransferring = "transferring"
	phaseFinishing    = "finishing"
	phaseComplete     = "complete"
	phaseFailed       = "failed"

	// EventTransfer moves a freshly opened session into the perform loop.
	EventTransfer = "event_transfer"
	// EventFinish leaves the perform loop once all bytes arrived.
	EventFinish = "event_finish"
	// EventComplete commits the attempt.
	EventComplete = "event_complete"
	// EventFail aborts the attempt from any live phase.
	EventFail = "event_fail"
)

// progressEvery is the number of perform steps between progress publishes.
const progressEvery = 100

// Downloader drives a single transfer attempt end to end: open a session,
// step it under watchdog supervision, commit the image and persist the
// completion time. The terminal result is delivered through the post
// callback, exactly once per attempt.
type Downloader struct {
	hal      core.HAL
	store    core.Store
	bus      core.Bus
	engine   transfer.Engine
	interval time.Duration
	timeout  time.Duration
	logger   log.Logger
}

func NewDownloader(deps core.Deps, engine transfer.Engine, interval, timeout time.Duration) *Downloader {
	return &Downloader{
		hal:      deps.HAL,
		store:    deps.Store,
		bus:      deps.Bus,
		engine:   engine,
		interval: interval,
		timeout:  timeout,
		logger:   log.WithName("downloader"),
	}
}

func (d *Downloader) newPhaseMachine() *fsm.FSM {
	return fsm.NewFSM(phaseBegun,
		fsm.Events{
			{Name: EventTransfer, Src: []string{phaseBegun}, Dst: phaseTransferring},
			{Name: EventFinish, Src: []string{phaseTransferring}, Dst: phaseFinishing},
			{Name: EventComplete, Src: []string{phaseFinishing}, Dst: phaseComplete},
			{Name: EventFail, Src: []string{phaseBegun, phaseTransferring, phaseFinishing}, Dst: phaseFailed},
		},
		fsm.Callbacks{
			"enter_" + phaseTransferring: fsmutil.WrapEvent(d.actionEnterTransferring),
			"enter_" + phaseComplete:     fsmutil.WrapEvent(d.actionEnterComplete),
			"enter_" + phaseFailed:       fsmutil.WrapEvent(d.actionEnterFailed),
		},
	)
}

// Run performs one attempt against url. timer is the shared attempt timer;
// it is armed on entry and fires post(OutcomeFailed) if the attempt outlives
// its budget. post must tolerate being called from both the timer callback
// and Run itself; callers hand in a once-guarded closure.
func (d *Downloader) Run(ctx context.Context, url string, timer *OneShot, post func(Outcome)) {
	machine := d.newPhaseMachine()
	started := time.Now()

	// The attempt budget covers session setup too, so the timer is armed
	// before Begin. Until the session exists the callback can only post the
	// failure; once it is published here the callback aborts it as well.
	var (
		liveMu  sync.Mutex
		live    transfer.Session
		expired bool
	)
	timer.Arm(d.timeout, func() {
		d.logger.Error(nil, "attempt timed out", "url", url, "budget", d.timeout)
		post(OutcomeFailed)
		liveMu.Lock()
		expired = true
		s := live
		liveMu.Unlock()
		if s != nil {
			s.Abort()
		}
	})
	defer timer.Stop()

	sess, err := d.engine.Begin(ctx, transfer.Config{URL: url})
	if err != nil {
		d.fail(ctx, machine, nil, post, fmt.Errorf("begin transfer: %w", err))
		return
	}
	liveMu.Lock()
	live = sess
	timedOut := expired
	liveMu.Unlock()
	if timedOut {
		d.fail(ctx, machine, sess, post, fmt.Errorf("session setup exceeded %s budget", d.timeout))
		return
	}

	if err := d.hal.RegisterWatchdog(); err != nil {
		sess.Abort()
		d.fail(ctx, machine, nil, post, fmt.Errorf("register watchdog: %w", err))
		return
	}
	defer func() {
		if err := d.hal.UnregisterWatchdog(); err != nil {
			d.logger.Error(err, "unregister watchdog")
		}
	}()

	if err := machine.Event(ctx, EventTransfer); err != nil {
		sess.Abort()
		d.fail(ctx, machine, nil, post, err)
		return
	}

	steps := 0
loop:
	for {
		switch status := sess.Perform(); status {
		case transfer.StatusInProgress:
			if err := d.hal.FeedWatchdog(); err != nil {
				d.fail(ctx, machine, sess, post, fmt.Errorf("feed watchdog: %w", err))
				return
			}
			steps++
			if steps%progressEvery == 0 {
				d.publishProgress(ctx, started, sess.Received())
			}
			select {
			case <-ctx.Done():
				d.fail(ctx, machine, sess, post, ctx.Err())
				return
			case <-time.After(d.interval):
			}
		case transfer.StatusOK:
			break loop
		default:
			d.fail(ctx, machine, sess, post, fmt.Errorf("transfer step: %w", sess.Err()))
			return
		}
	}

	metrics.TransferBytesTotal.Add(float64(sess.Received()))

	if !sess.IsComplete() {
		d.fail(ctx, machine, sess, post, fmt.Errorf("incomplete transfer: %d bytes received", sess.Received()))
		return
	}

	if err := machine.Event(ctx, EventFinish); err != nil {
		d.fail(ctx, machine, sess, post, err)
		return
	}
	if err := sess.Finish(); err != nil {
		d.fail(ctx, machine, nil, post, fmt.Errorf("finish transfer: %w", err))
		return
	}

	// The completion record must be durable before the attempt is reported
	// complete; a device that reboots without it would not know it updated.
	if err := RecordUpdateTime(ctx, d.store, time.Now()); err != nil {
		d.fail(ctx, machine, nil, post, err)
		return
	}

	elapsed := time.Since(started)
	if err := machine.Event(ctx, EventComplete, elapsed); err != nil {
		d.logger.Error(err, "phase machine rejected completion")
	}
	metrics.UpdateDuration.Observe(elapsed.Seconds())
	post(OutcomeOK)
}

// fail drives the phase machine to failed, releases the session if still
// held and posts the outcome.
func (d *Downloader) fail(ctx context.Context, machine *fsm.FSM, sess transfer.Session, post func(Outcome), err error) {
	if sess != nil {
		sess.Abort()
	}
	if ferr := machine.Event(ctx, EventFail, err); ferr != nil {
		d.logger.Error(ferr, "phase machine rejected failure", "cause", err)
	}
	post(OutcomeFailed)
}

func (d *Downloader) publishProgress(ctx context.Context, started time.Time, received int64) {
	text := fmt.Sprintf("downloading, %s elapsed, %d bytes", formatMinSec(time.Since(started)), received)
	if err := d.bus.PublishStatus(ctx, text); err != nil {
		d.logger.Error(err, "publish progress")
	}
}

func (d *Downloader) actionEnterTransferring(ctx context.Context, e *fsm.Event) error {
	d.logger.Info("transfer started")
	if err := d.bus.PublishStatus(ctx, "download started"); err != nil {
		d.logger.Error(err, "publish status")
	}
	return nil
}

func (d *Downloader) actionEnterComplete(ctx context.Context, e *fsm.Event) error {
	var elapsed time.Duration
	if len(e.Args) > 0 {
		if v, ok := e.Args[0].(time.Duration); ok {
			elapsed = v
		}
	}
	text := fmt.Sprintf("download completed in %s", formatHourMinSec(elapsed))
	d.logger.Info("transfer complete", "elapsed", elapsed)
	if err := d.bus.PublishStatus(ctx, text); err != nil {
		d.logger.Error(err, "publish status")
	}
	return nil
}

func (d *Downloader) actionEnterFailed(ctx context.Context, e *fsm.Event) error {
	cause := "unknown error"
	if len(e.Args) > 0 {
		if err, ok := e.Args[0].(error); ok && err != nil {
			cause = err.Error()
		}
	}
	d.logger.Error(nil, "transfer failed", "cause", cause)
	if err := d.bus.PublishStatus(ctx, "download failed: "+cause); err != nil {
		d.logger.Error(err, "publish status")
	}
	return nil
}

func formatMinSec(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func formatHourMinSec(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}
