package transfer

import (
	"crypto/x509"
	_ "embed"
	"fmt"
	"os"
)

// The firmware endpoint is fronted by CloudFront, so transport trust is
// pinned to Amazon's root rather than the device's (possibly stale) system
// certificate bundle.
//
//go:embed amazon_root_ca1.pem
var amazonRootCA1 []byte

// DefaultRootCAs returns the embedded trust anchor pool.
func DefaultRootCAs() *x509.CertPool {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(amazonRootCA1) {
		// The embedded PEM is validated at build time by tests; reaching
		// this means a corrupted binary.
		panic("embedded root certificate is invalid")
	}
	return pool
}

// LoadRootCAs reads a PEM bundle from caFile, for deployments that override
// the embedded anchor.
func LoadRootCAs(caFile string) (*x509.CertPool, error) {
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}
	return pool, nil
}
