package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*MetricsOptions)(nil)

// MetricsOptions contains configuration for the metrics/health HTTP endpoint.
type MetricsOptions struct {
	// Enabled controls whether the HTTP server is started at all.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Addr is the server bind address.
	Addr string `json:"addr" mapstructure:"addr"`
}

// NewMetricsOptions creates a MetricsOptions object with default parameters.
func NewMetricsOptions() *MetricsOptions {
	return &MetricsOptions{
		Enabled: true,
		Addr:    "0.0.0.0:9402",
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *MetricsOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	errors := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}

	return errors
}

// AddFlags adds flags related to the metrics server to the specified FlagSet.
func (o *MetricsOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "metrics.enabled", o.Enabled, "Serve Prometheus metrics and health probes over HTTP.")
	fs.StringVar(&o.Addr, "metrics.addr", o.Addr, "Specify the metrics server bind address and port.")
}
