package updateagent

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"

	"github.com/gatewing-io/gatewing/internal/pkg/metrics"
	"github.com/gatewing-io/gatewing/internal/pkg/mqtt/paths"
	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/internal/updateagent/hal"
	"github.com/gatewing-io/gatewing/internal/updateagent/hub"
	"github.com/gatewing-io/gatewing/internal/updateagent/ota"
	"github.com/gatewing-io/gatewing/internal/updateagent/store"
	"github.com/gatewing-io/gatewing/internal/updateagent/transfer"
	"github.com/gatewing-io/gatewing/pkg/mqtt"
	mqtttopic "github.com/gatewing-io/gatewing/pkg/mqtt/topic"
	"github.com/gatewing-io/gatewing/pkg/options"
)

// Config is the fully resolved agent configuration.
type Config struct {
	MqttOptions    *options.MqttOptions
	RedisOptions   *options.RedisOptions
	S3Options      *options.S3Options
	UpdateOptions  *options.UpdateOptions
	MetricsOptions *options.MetricsOptions
}

// NewAgent assembles the agent from configuration: HAL, durable store, bus
// client, transfer engines and the update module.
func (cfg *Config) NewAgent(ctx context.Context) (*Agent, error) {
	systemHAL := hal.NewHAL()

	deviceKey, err := systemHAL.MACAddress()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve device MAC from HAL: %w", err)
	}

	st, err := cfg.newStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	mqttClient, topicBuilder, err := cfg.initMqttClientAndTopicBuilder(deviceKey)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init mqtt client: %w", err)
	}

	engine, err := cfg.newTransferRouter(systemHAL)
	if err != nil {
		st.Close()
		return nil, err
	}

	var msrv *metrics.Server
	if cfg.MetricsOptions.Enabled {
		msrv = metrics.NewServer(cfg.MetricsOptions.Addr)
	}

	return NewAgent(
		deviceKey,
		systemHAL,
		st,
		hub.New(deviceKey, mqttClient, topicBuilder),
		msrv,
		ota.NewManager(engine, ota.Config{
			MaxAttempts:     cfg.UpdateOptions.MaxAttempts,
			AttemptTimeout:  cfg.UpdateOptions.AttemptTimeout,
			PerformInterval: cfg.UpdateOptions.PerformInterval,
			RebootDelay:     cfg.UpdateOptions.RebootDelay,
		}),
	), nil
}

func (cfg *Config) newStore(ctx context.Context) (core.Store, error) {
	switch cfg.UpdateOptions.StateBackend {
	case "file":
		return store.NewFile(cfg.UpdateOptions.StateDir)
	default:
		return store.NewRedis(ctx, cfg.RedisOptions)
	}
}

func (cfg *Config) newTransferRouter(systemHAL core.HAL) (transfer.Engine, error) {
	settings := transfer.Settings{
		SpoolDir:  cfg.UpdateOptions.SpoolDir,
		ChunkSize: cfg.UpdateOptions.ChunkSize,
	}

	var roots *x509.CertPool
	if cfg.UpdateOptions.CAFile != "" {
		var err error
		roots, err = transfer.LoadRootCAs(cfg.UpdateOptions.CAFile)
		if err != nil {
			return nil, fmt.Errorf("load trust anchor: %w", err)
		}
	}

	https := transfer.NewHTTPS(systemHAL, settings, roots)
	engines := map[string]transfer.Engine{"https": https}

	if cfg.S3Options.AccessKeyID != "" {
		s3, err := transfer.NewS3(systemHAL, settings, cfg.S3Options)
		if err != nil {
			return nil, fmt.Errorf("init s3 engine: %w", err)
		}
		engines["s3"] = s3
	}

	return transfer.NewRouter(engines), nil
}

func (cfg *Config) initMqttClientAndTopicBuilder(deviceKey string) (mqtt.Client, *mqtttopic.Builder, error) {
	topicBuilder := mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot)

	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = fmt.Sprintf("gatewing-agent-%s", deviceKey)
	}

	// No timestamp in the will payload: the broker publishes it at an
	// unknowable future time.
	offlinePayload, _ := json.Marshal(OnlineStatus{
		DeviceKey: deviceKey,
		Online:    false,
		Reason:    "UnexpectedDisconnect",
	})

	mqttConfig.WillTopic = topicBuilder.Build(paths.Online, deviceKey)
	mqttConfig.WillPayload = offlinePayload
	mqttConfig.WillQoS = 1
	mqttConfig.WillRetain = true

	mqttClient, err := mqtt.NewClient(mqttConfig)
	if err != nil {
		return nil, nil, err
	}

	return mqttClient, topicBuilder, nil
}
