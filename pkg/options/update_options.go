package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*UpdateOptions)(nil)

// UpdateOptions contains the firmware update orchestration knobs.
type UpdateOptions struct {
	// MaxAttempts is the number of transfer attempts per update command.
	MaxAttempts int `json:"max-attempts" mapstructure:"max-attempts"`

	// AttemptTimeout bounds a single transfer attempt end to end.
	AttemptTimeout time.Duration `json:"attempt-timeout" mapstructure:"attempt-timeout"`

	// PerformInterval is the pause between transfer engine steps while a
	// download is in progress.
	PerformInterval time.Duration `json:"perform-interval" mapstructure:"perform-interval"`

	// RebootDelay is the grace period between finalizing an update command
	// and triggering the reboot.
	RebootDelay time.Duration `json:"reboot-delay" mapstructure:"reboot-delay"`

	// SpoolDir is where in-flight firmware images are staged.
	SpoolDir string `json:"spool-dir" mapstructure:"spool-dir"`

	// ChunkSize is the number of bytes read per transfer engine step.
	ChunkSize int64 `json:"chunk-size" mapstructure:"chunk-size"`

	// CAFile optionally overrides the embedded root certificate used to
	// verify the firmware download endpoint.
	CAFile string `json:"ca-file" mapstructure:"ca-file"`

	// StateBackend selects the durable state store: "redis" or "file".
	StateBackend string `json:"state-backend" mapstructure:"state-backend"`

	// StateDir is the directory backing the "file" state store.
	StateDir string `json:"state-dir" mapstructure:"state-dir"`
}

// NewUpdateOptions creates an UpdateOptions object with default parameters.
func NewUpdateOptions() *UpdateOptions {
	return &UpdateOptions{
		MaxAttempts:     3,
		AttemptTimeout:  10 * time.Minute,
		PerformInterval: 100 * time.Millisecond,
		RebootDelay:     1 * time.Second,
		SpoolDir:        "/var/spool/gatewing",
		ChunkSize:       64 * 1024,
		StateBackend:    "redis",
		StateDir:        "/var/lib/gatewing",
	}
}

func (o *UpdateOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.MaxAttempts < 1 {
		errors = append(errors, fmt.Errorf("update.max-attempts must be at least 1, got %d", o.MaxAttempts))
	}
	if o.ChunkSize < 1 {
		errors = append(errors, fmt.Errorf("update.chunk-size must be positive, got %d", o.ChunkSize))
	}
	switch o.StateBackend {
	case "redis", "file":
	default:
		errors = append(errors, fmt.Errorf("update.state-backend must be 'redis' or 'file', got %q", o.StateBackend))
	}

	return errors
}

func (o *UpdateOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.MaxAttempts, "update.max-attempts", o.MaxAttempts, "Number of transfer attempts per update command.")
	fs.DurationVar(&o.AttemptTimeout, "update.attempt-timeout", o.AttemptTimeout, "Upper bound for a single transfer attempt.")
	fs.DurationVar(&o.PerformInterval, "update.perform-interval", o.PerformInterval, "Pause between transfer engine steps.")
	fs.DurationVar(&o.RebootDelay, "update.reboot-delay", o.RebootDelay, "Delay between finalizing an update and rebooting.")
	fs.StringVar(&o.SpoolDir, "update.spool-dir", o.SpoolDir, "Directory where in-flight firmware images are staged.")
	fs.Int64Var(&o.ChunkSize, "update.chunk-size", o.ChunkSize, "Bytes read per transfer engine step.")
	fs.StringVar(&o.CAFile, "update.ca-file", o.CAFile, "PEM file overriding the embedded download root certificate.")
	fs.StringVar(&o.StateBackend, "update.state-backend", o.StateBackend, "Durable state store backend ('redis' or 'file').")
	fs.StringVar(&o.StateDir, "update.state-dir", o.StateDir, "Directory backing the file state store.")
}
