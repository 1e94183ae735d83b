//go:build gcp

package registry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSProvider reads registries from gs://<bucket>/<prefix>registries/<version>/<name>.json.
type GCSProvider struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSProvider creates a provider using Application Default Credentials.
func NewGCSProvider(ctx context.Context, bucket, prefix string) (Provider, error) {
	if bucket == "" {
		return nil, errors.New("registry: gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: create gcs client: %w", err)
	}
	return &GCSProvider{client: client, bucket: bucket, prefix: prefix}, nil
}

func (p *GCSProvider) LoadJSON(ctx context.Context, name, version string) ([]byte, error) {
	path := objectKey(p.prefix, name, version)
	r, err := p.client.Bucket(p.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrRegistryNotFound, p.bucket, path)
		}
		return nil, fmt.Errorf("registry: gcs get %s: %w", path, err)
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
