package registry

import (
	"context"
	"fmt"
)

// Backend names a registry storage backend.
type Backend string

const (
	BackendFS    Backend = "fs"
	BackendS3    Backend = "s3"
	BackendGCS   Backend = "gcs"
	BackendRedis Backend = "redis"
)

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Backend  Backend
	SpecRoot string

	S3 S3Config

	GCSBucket string
	GCSPrefix string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// RateLimit caps remote fetches per second; zero means unlimited.
	RateLimit float64
	Burst     int
}

// NewProviderFromConfig builds the configured backend. Remote backends are
// wrapped in a RateLimited decorator.
func NewProviderFromConfig(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Backend {
	case BackendFS, "":
		if cfg.SpecRoot == "" {
			return nil, fmt.Errorf("registry: spec root is required for the fs backend")
		}
		return NewFSProvider(cfg.SpecRoot), nil
	case BackendS3:
		p, err = NewS3Provider(ctx, cfg.S3)
	case BackendGCS:
		p, err = NewGCSProvider(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("registry: redis address is required")
		}
		p = NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("registry: unsupported backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.RateLimit > 0 {
		p = NewRateLimited(p, cfg.RateLimit, cfg.Burst)
	}
	return p, nil
}
