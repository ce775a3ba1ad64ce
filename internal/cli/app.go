package cli

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/till/internal/config"
	"github.com/roach88/till/internal/connectivity"
	"github.com/roach88/till/internal/queue"
	"github.com/roach88/till/internal/remote"
	"github.com/roach88/till/internal/sale"
	"github.com/roach88/till/internal/storage"
	"github.com/roach88/till/internal/syncer"
)

// app bundles the wired components one command invocation works with.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	backend storage.Backend
	queue   *queue.PendingQueue
	prober  connectivity.Prober
	monitor *connectivity.Monitor
	remote  *remote.Client
	engine  *syncer.Engine
	builder *sale.Builder
}

// newLogger builds the command logger. One-shot commands stay quiet unless
// --verbose; serve always logs.
func newLogger(opts *RootOptions, serving bool) (*zap.Logger, error) {
	switch {
	case opts.Verbose:
		return zap.NewDevelopment()
	case serving:
		return zap.NewProduction()
	default:
		return zap.NewNop(), nil
	}
}

// openApp loads config and wires storage, queue, connectivity, remote
// client, and sync engine.
func openApp(opts *RootOptions, serving bool) (*app, error) {
	logger, err := newLogger(opts, serving)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	dataDir, err := cfg.EnsureDataDir()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to prepare data dir", err)
	}

	backend, err := storage.Open(dataDir, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}

	q := queue.New(backend)
	prober := connectivity.NewHTTPProber(cfg.ProbeURL(), cfg.Backend.SubmitTimeout.Std())
	monitor := connectivity.NewMonitor(prober, cfg.Sync.ProbeInterval.Std(), logger)
	client := remote.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIToken, cfg.Backend.SubmitTimeout.Std(), logger)
	engine := syncer.New(q, client, monitor, cfg.Sync.Interval.Std(), logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		backend: backend,
		queue:   q,
		prober:  prober,
		monitor: monitor,
		remote:  client,
		engine:  engine,
		builder: sale.NewBuilder(nil),
	}, nil
}

// probeOnce establishes connectivity state for one-shot commands that do
// not run the monitor loop. It reuses the prober the monitor is wired with.
func (a *app) probeOnce(ctx context.Context) {
	if a.prober.Check(ctx) {
		a.monitor.SetState(connectivity.Online)
	} else {
		a.monitor.SetState(connectivity.Offline)
	}
}

// close releases storage and transport resources.
func (a *app) close() {
	if err := a.remote.Close(); err != nil {
		a.logger.Warn("closing remote client", zap.Error(err))
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("closing storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}
