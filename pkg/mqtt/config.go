package mqtt

import (
	"crypto/x509"
	"errors"
	"net/url"
	"time"
)

// ClientConfig holds the configuration for creating a new MQTT Client.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// KeepAlive in seconds. Default is 60.
	KeepAlive uint16

	// SessionExpiry is the MQTT 5 session expiry interval in seconds.
	SessionExpiry uint32

	// ConnectTimeout for the initial connection. Default is 5s.
	ConnectTimeout time.Duration

	// CleanStart indicates whether to start a clean session.
	// Devices usually keep this false to receive missed messages.
	CleanStart bool

	// RootCAs pins the certificate pool used to verify the broker.
	// Nil means the host's system pool.
	RootCAs *x509.CertPool

	// InsecureSkipVerify disables TLS certificate verification.
	// Only for test environments with self-signed certs.
	InsecureSkipVerify bool

	// Will message published by the broker on unexpected disconnect.
	// An empty WillTopic disables the will.
	WillTopic   string
	WillPayload []byte
	WillQoS     byte
	WillRetain  bool
}

// setDefaultConfig applies safe default values to the configuration.
func setDefaultConfig(cfg *ClientConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60
	}
}

// Validate checks if the configuration is valid.
func (c *ClientConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	if _, err := url.Parse(c.BrokerURL); err != nil {
		return err
	}
	return nil
}
