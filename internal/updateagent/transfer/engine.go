package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Status is the result of a single transfer engine step.
type Status int

const (
	// StatusInProgress means more data remains; step again.
	StatusInProgress Status = iota
	// StatusOK means the transfer finished; call IsComplete and Finish.
	StatusOK
	// StatusError means the attempt is dead.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in-progress"
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrAborted is reported by sessions torn down before completing.
var ErrAborted = errors.New("transfer aborted")

// Config describes one transfer attempt.
type Config struct {
	// URL is the image source location.
	URL string
}

// Session is one in-flight firmware transfer. A session is exclusively owned
// by the worker driving it and must be released exactly once, either through
// Finish or Abort.
type Session interface {
	// Perform advances the transfer by one step.
	Perform() Status

	// IsComplete reports whether all expected bytes were received.
	IsComplete() bool

	// Finish commits the staged image to the inactive storage bank and
	// releases the session.
	Finish() error

	// Abort releases the session without committing. Safe to call
	// concurrently with Perform and after Finish; only the first release
	// takes effect.
	Abort()

	// Received returns the number of payload bytes received so far.
	Received() int64

	// Err returns the error behind the last StatusError, if any.
	Err() error
}

// Engine opens transfer sessions. Implementations differ in transport only;
// staging and committing are shared.
type Engine interface {
	Begin(ctx context.Context, cfg Config) (Session, error)
}

// Router dispatches Begin to the engine registered for the URL scheme.
type Router struct {
	engines map[string]Engine
}

// NewRouter builds a Router over a scheme -> engine map.
func NewRouter(engines map[string]Engine) *Router {
	return &Router{engines: engines}
}

func (r *Router) Begin(ctx context.Context, cfg Config) (Session, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}

	engine, ok := r.engines[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("no transfer engine for scheme %q", u.Scheme)
	}
	return engine.Begin(ctx, cfg)
}
