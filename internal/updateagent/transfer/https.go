package transfer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/pkg/log"
)

// Settings are the staging parameters shared by all engines.
type Settings struct {
	// SpoolDir is where in-flight images are staged.
	SpoolDir string

	// ChunkSize is the number of bytes read per Perform step.
	ChunkSize int64
}

// HTTPSEngine streams firmware images over HTTPS. Server trust is pinned to
// a fixed root certificate pool rather than the host's system roots.
type HTTPSEngine struct {
	hal      core.HAL
	settings Settings
	client   *http.Client
}

var _ Engine = (*HTTPSEngine)(nil)

// NewHTTPS creates an HTTPS engine verifying the download endpoint against
// roots. A nil pool falls back to the embedded trust anchor.
func NewHTTPS(hal core.HAL, settings Settings, roots *x509.CertPool) *HTTPSEngine {
	if roots == nil {
		roots = DefaultRootCAs()
	}

	return &HTTPSEngine{
		hal:      hal,
		settings: settings,
		// No overall client timeout: the body is drained chunk by chunk
		// across many Perform steps and the attempt timer bounds the whole
		// transfer. Connection setup is bounded here instead.
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				TLSClientConfig: &tls.Config{
					RootCAs: roots,
				},
			},
		},
	}
}

func (e *HTTPSEngine) Begin(ctx context.Context, cfg Config) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open transfer: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("server returned status: %s", resp.Status)
	}

	sess, err := newSpoolSession(e.hal, resp.Body, resp.ContentLength, e.settings.SpoolDir, e.settings.ChunkSize)
	if err != nil {
		return nil, err
	}

	log.Info("Transfer session opened", "session", sess.ID(), "url", cfg.URL, "expectedBytes", resp.ContentLength)
	return sess, nil
}
