package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/adapters/process"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Env is what every command works with: configuration, logger, session
// backend and an engine reading trees from a directory.
type Env struct {
	Config    config.Config
	Logger    *slog.Logger
	Backend   *Backend
	Telemetry *Telemetry
	Actions   *process.Runner
	Engine    *arbor.Engine
	Dir       string
}

// OpenEnv loads the configuration from the environment and wires the engine.
func OpenEnv(ctx context.Context, dir string, debug bool) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewEnv(ctx, cfg, dir, debug)
}

// NewEnv wires the engine from an explicit configuration.
func NewEnv(ctx context.Context, cfg config.Config, dir string, debug bool) (*Env, error) {
	logger, err := createLogger(cfg, debug)
	if err != nil {
		return nil, err
	}
	backend, err := OpenBackend(cfg, dir)
	if err != nil {
		return nil, err
	}
	actions, err := loadActions(dir, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	telemetry, err := setupTelemetry(ctx, cfg, debug, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return &Env{
		Config:    cfg,
		Logger:    logger,
		Backend:   backend,
		Telemetry: telemetry,
		Actions:   actions,
		Engine:    createEngine(dir, backend, actions, telemetry.Hooks, logger),
		Dir:       dir,
	}, nil
}

// Close kills running process actions, flushes telemetry and closes the backend.
func (e *Env) Close(ctx context.Context) error {
	e.Actions.Close()
	return errors.Join(e.Telemetry.Shutdown(ctx), e.Backend.Close())
}

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	Tree      string
	SessionID string
	Frames    int
	Interval  time.Duration
	Loop      bool
	Watch     bool
	Fresh     bool
	Verbose   bool
	Quiet     bool

	// In carries event commands; Out receives the tick lines.
	In  io.Reader
	Out io.Writer
}

// Run ticks an agent of opts.Tree until it completes, resuming the session
// when one is named. It returns the final root status.
func (e *Env) Run(ctx context.Context, opts RunOptions) (domain.Status, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Watch {
		if err := e.Engine.Watch(ctx); err != nil {
			return domain.StatusUninitialized, err
		}
	}
	if e.Config.MetricsAddr != "" {
		stop := e.serveMetrics()
		defer stop()
	}

	if opts.Fresh && opts.SessionID != "" {
		if err := e.Engine.Delete(ctx, opts.SessionID); err != nil {
			return domain.StatusUninitialized, err
		}
	}
	agent, err := e.Engine.Open(ctx, opts.SessionID, opts.Tree)
	if err != nil {
		return domain.StatusUninitialized, err
	}
	defer agent.Close()

	render := tui.NewRenderer(out)
	render.Verbose = opts.Verbose
	if !opts.Quiet {
		printSystemMessage(out, "Running '%s' as session '%s' from frame %d.", agent.TreeID(), agent.SessionID(), agent.Frame())
	}

	runner := &arbor.Runner{
		Input:     opts.In,
		Output:    out,
		MaxFrames: opts.Frames,
		Interval:  opts.Interval,
		Loop:      opts.Loop,
		Save:      opts.SessionID != "",
		OnTick: func(a *arbor.Agent, status domain.Status) {
			if !opts.Quiet {
				render.Tick(a.Frame(), status, a.Inspect())
			}
		},
	}
	status, runErr := runner.Run(ctx, agent)

	if !opts.Quiet {
		printSystemMessage(out, "Finished with %s at frame %d.", render.Status(status), agent.Frame())
		if opts.Verbose {
			render.Variables(agent.Snapshot().Variables)
		}
	}
	return status, handleExecutionError(runErr)
}

// serveMetrics exposes the telemetry registry on the configured address.
func (e *Env) serveMetrics() (stop func()) {
	srv := &http.Server{
		Addr:    e.Config.MetricsAddr,
		Handler: promhttp.HandlerFor(e.Telemetry.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Error("metrics server failed", "addr", srv.Addr, "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// ValidateAll validates the named trees, or every tree of the directory when
// ids is empty. It reports one line per tree and fails if any is invalid.
func (e *Env) ValidateAll(out io.Writer, ids []string) error {
	if len(ids) == 0 {
		var err error
		ids, err = e.Engine.Loader().ListTrees()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("no trees found in %s", e.Dir)
		}
	}
	failed := 0
	for _, id := range ids {
		if err := e.Engine.Validate(id); err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", id, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d trees are invalid", failed, len(ids))
	}
	return nil
}
