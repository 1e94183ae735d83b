// Package sdk is the prove/verify entry point. It binds the verdict engine,
// the violation registry, an optional transparency log and telemetry.
package sdk

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Mindburn-Labs/immuva/pkg/config"
	"github.com/Mindburn-Labs/immuva/pkg/observability"
	"github.com/Mindburn-Labs/immuva/pkg/registry"
	"github.com/Mindburn-Labs/immuva/pkg/tlog"
	"github.com/Mindburn-Labs/immuva/pkg/verdict"
)

// Version is reported on telemetry resources.
const Version = "0.1.0"

// Client proves and verifies. The zero value is not usable; use New.
type Client struct {
	engine  *verdict.Engine
	log     *tlog.Log
	closer  io.Closer
	obs     *observability.Provider
	offline bool
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	engineOpts []verdict.Option
	log        *tlog.Log
	closer     io.Closer
	obs        *observability.Provider
	offline    bool
	logger     *slog.Logger
}

// WithEngineOptions forwards options to the verdict engine.
func WithEngineOptions(opts ...verdict.Option) Option {
	return func(o *clientOptions) { o.engineOpts = append(o.engineOpts, opts...) }
}

// WithTransparencyLog makes Prove append every event to log and attach
// the resulting inclusion proof.
func WithTransparencyLog(log *tlog.Log) Option {
	return func(o *clientOptions) { o.log = log }
}

// WithObservability records spans and verdict counters on p.
func WithObservability(p *observability.Provider) Option {
	return func(o *clientOptions) { o.obs = p }
}

// WithOfflineDefault sets the offline flag Verify uses when the caller
// leaves it unset.
func WithOfflineDefault(offline bool) Option {
	return func(o *clientOptions) { o.offline = offline }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// New builds a client.
func New(opts ...Option) *Client {
	o := clientOptions{offline: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		engine:  verdict.New(o.engineOpts...),
		log:     o.log,
		closer:  o.closer,
		obs:     o.obs,
		offline: o.offline,
		logger:  o.logger.With("component", "sdk"),
	}
}

// NewFromConfig wires a client from process configuration: the registry
// backend, the SQL transparency log when a DSN is set, and telemetry.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	provider, err := registry.NewProviderFromConfig(ctx, cfg.Registry())
	if err != nil {
		return nil, fmt.Errorf("sdk: registry: %w", err)
	}

	obs, err := observability.New(ctx, cfg.Telemetry(Version))
	if err != nil {
		return nil, fmt.Errorf("sdk: observability: %w", err)
	}

	opts := []Option{
		WithEngineOptions(verdict.WithRegistry(provider), verdict.WithRegistryVersion(cfg.RegistryVersion)),
		WithObservability(obs),
		WithOfflineDefault(cfg.Offline),
		WithLogger(cfg.NewLogger()),
	}
	if cfg.TLogDSN != "" {
		store, err := tlog.OpenSQL(ctx, cfg.TLogDriver, cfg.TLogDSN)
		if err != nil {
			_ = obs.Shutdown(ctx)
			return nil, fmt.Errorf("sdk: transparency log: %w", err)
		}
		opts = append(opts, WithTransparencyLog(tlog.New(store)), func(o *clientOptions) { o.closer = store })
	}
	return New(opts...), nil
}

// Engine exposes the underlying verdict engine.
func (c *Client) Engine() *verdict.Engine {
	return c.engine
}

// TransparencyLog returns the attached log, or nil.
func (c *Client) TransparencyLog() *tlog.Log {
	return c.log
}

// Close releases the log store and flushes telemetry.
func (c *Client) Close(ctx context.Context) error {
	var err error
	if c.closer != nil {
		err = c.closer.Close()
	}
	if c.obs != nil {
		if serr := c.obs.Shutdown(ctx); err == nil {
			err = serr
		}
	}
	return err
}
