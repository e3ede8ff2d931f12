package transfer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/pkg/log"
	"github.com/gatewing-io/gatewing/pkg/options"
)

// S3Engine streams firmware images from an S3-compatible artifact store for
// commands whose source URL is s3://bucket/key.
type S3Engine struct {
	hal      core.HAL
	settings Settings
	client   *minio.Client
}

var _ Engine = (*S3Engine)(nil)

// NewS3 creates an engine over the configured S3 endpoint.
func NewS3(hal core.HAL, settings Settings, opts *options.S3Options) (*S3Engine, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Engine{
		hal:      hal,
		settings: settings,
		client:   client,
	}, nil
}

func (e *S3Engine) Begin(ctx context.Context, cfg Config) (Session, error) {
	bucket, key, err := splitS3URL(cfg.URL)
	if err != nil {
		return nil, err
	}

	obj, err := e.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open s3 object: %w", err)
	}

	// Stat eagerly so a missing object fails the Begin phase, not the first
	// Perform step.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("failed to stat s3 object: %w", err)
	}

	sess, err := newSpoolSession(e.hal, obj, info.Size, e.settings.SpoolDir, e.settings.ChunkSize)
	if err != nil {
		return nil, err
	}

	log.Info("Transfer session opened", "session", sess.ID(), "bucket", bucket, "key", key, "expectedBytes", info.Size)
	return sess, nil
}

// splitS3URL splits s3://bucket/path/to/key into bucket and key.
func splitS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url %q", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 url %q is missing an object key", raw)
	}
	return u.Host, key, nil
}
