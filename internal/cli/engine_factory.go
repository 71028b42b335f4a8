package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/process"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Backend bundles the session store selected by the configuration and the
// resources that must be released with it.
type Backend struct {
	Store  ports.StateStore
	Locker ports.DistributedLocker

	closers []func() error
}

// Close releases the store connections.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenBackend opens the store named by cfg.Store, wrapped by the redaction
// and encryption middlewares when configured. File stores default to
// <dir>/.arbor/sessions.
func OpenBackend(cfg config.Config, dir string) (*Backend, error) {
	b, err := openStore(cfg, dir)
	if err != nil {
		return nil, err
	}

	var mws []middleware.Middleware
	if len(cfg.RedactPatterns) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.RedactPatterns)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		mws = append(mws, mw)
	}
	active, fallback, err := cfg.Keys()
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if active != nil {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		mws = append(mws, mw)
	}
	b.Store = middleware.Chain(b.Store, mws...)
	return b, nil
}

func openStore(cfg config.Config, dir string) (*Backend, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		return &Backend{Store: memory.NewStore()}, nil
	case config.StoreFile:
		path := cfg.StorePath
		if path == "" {
			path = filepath.Join(dir, ".arbor", "sessions")
		}
		return &Backend{Store: file.NewStore(path)}, nil
	case config.StoreRedis:
		store := redis.New(cfg.RedisAddr, "", 0, redis.WithPrefix(cfg.RedisPrefix), redis.WithTTL(cfg.SessionTTL))
		return &Backend{
			Store:   store,
			Locker:  redis.NewLocker(store.Client(), cfg.RedisPrefix),
			closers: []func() error{store.Close},
		}, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: store, closers: []func() error{store.Close}}, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// Telemetry holds the hooks and exporters of a CLI invocation.
type Telemetry struct {
	Hooks    domain.LifecycleHooks
	Registry *prometheus.Registry
	Shutdown func(context.Context) error
}

// setupTelemetry registers the tick metrics and, when an OTLP endpoint is
// configured, the tracing hooks.
func setupTelemetry(ctx context.Context, cfg config.Config, debug bool, logger *slog.Logger) (*Telemetry, error) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	t := &Telemetry{
		Hooks:    metrics.Hooks(),
		Registry: reg,
		Shutdown: func(context.Context) error { return nil },
	}

	if cfg.OTelEndpoint != "" {
		shutdown, err := observability.Setup(ctx, "arbor", cfg.OTelEndpoint)
		if err != nil {
			return nil, fmt.Errorf("tracing: %w", err)
		}
		t.Shutdown = shutdown
		t.Hooks = t.Hooks.Merge(observability.NewTracing(nil).Hooks())
	}
	if debug {
		t.Hooks = t.Hooks.Merge(createDebugHooks(logger))
	}
	return t, nil
}

// loadActions registers the process actions declared in <dir>/actions.yaml.
func loadActions(dir string, logger *slog.Logger) (*process.Runner, error) {
	actions, err := process.LoadActions(filepath.Join(dir, process.DefaultConfigFile))
	if err != nil {
		return nil, err
	}
	return process.NewRunner(
		process.WithRegistry(actions),
		process.WithBaseDir(dir),
		process.WithLogger(logger),
	), nil
}

// createEngine initializes an engine with standard CLI conventions: trees
// are read from dir, sessions live in the configured backend and process
// actions come from the runner.
func createEngine(dir string, backend *Backend, actions *process.Runner, hooks domain.LifecycleHooks, logger *slog.Logger) *arbor.Engine {
	opts := []arbor.Option{
		arbor.WithLoader(file.NewLoader(dir, file.WithIgnore(process.DefaultConfigFile))),
		arbor.WithStore(backend.Store),
		arbor.WithLifecycleHooks(hooks),
		arbor.WithLogger(logger),
	}
	if backend.Locker != nil {
		opts = append(opts, arbor.WithLocker(backend.Locker))
	}
	for _, name := range actions.Names() {
		opts = append(opts, arbor.WithAction(name, actions.Action(name)))
	}
	return arbor.New(opts...)
}
