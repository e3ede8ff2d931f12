package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/gatewing-io/gatewing/internal/updateagent"
	"github.com/gatewing-io/gatewing/pkg/app"
	"github.com/gatewing-io/gatewing/pkg/log"
	"github.com/gatewing-io/gatewing/pkg/options"
)

// AgentOptions is the full flag and config-file surface of the update agent.
type AgentOptions struct {
	MqttOptions    *options.MqttOptions    `json:"mqtt" mapstructure:"mqtt"`
	RedisOptions   *options.RedisOptions   `json:"redis" mapstructure:"redis"`
	S3Options      *options.S3Options      `json:"s3" mapstructure:"s3"`
	UpdateOptions  *options.UpdateOptions  `json:"update" mapstructure:"update"`
	MetricsOptions *options.MetricsOptions `json:"metrics" mapstructure:"metrics"`
	Log            *log.Options            `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*AgentOptions)(nil)

func NewAgentOptions() *AgentOptions {
	o := &AgentOptions{
		MqttOptions:    options.NewMqttOptions(),
		RedisOptions:   options.NewRedisOptions(),
		S3Options:      options.NewS3Options(),
		UpdateOptions:  options.NewUpdateOptions(),
		MetricsOptions: options.NewMetricsOptions(),
		Log:            log.NewOptions(),
	}

	return o
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.UpdateOptions.AddFlags(fss.FlagSet("update"))
	o.MetricsOptions.AddFlags(fss.FlagSet("metrics"))
	o.Log.AddFlags(fss.FlagSet("Log"))
	return fss
}

func (o *AgentOptions) Complete() error {
	return nil
}

func (o *AgentOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.UpdateOptions.Validate()...)
	errs = append(errs, o.MetricsOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) Config() (*updateagent.Config, error) {
	return &updateagent.Config{
		MqttOptions:    o.MqttOptions,
		RedisOptions:   o.RedisOptions,
		S3Options:      o.S3Options,
		UpdateOptions:  o.UpdateOptions,
		MetricsOptions: o.MetricsOptions,
	}, nil
}
