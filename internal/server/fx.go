// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/api"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/clock/system"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/config"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/id/uuid"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/orchestrator"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/progress"
	progresssinks "github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/progress/sinks"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/registry"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/runner/local"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/runner/process"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

const defaultShutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	res           *resources
	apiServer     *api.Server
	orchestrator  *orchestrator.Orchestrator
	progressHub   *progress.Hub
	cancelWorkers context.CancelFunc
}

// Handler exposes the HTTP surface, mostly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the HTTP server and blocks until ctx is canceled or a shutdown
// signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := defaultShutdownTimeout
	if a.cfg.Server.ShutdownTimeoutSeconds > 0 {
		timeout = time.Duration(a.cfg.Server.ShutdownTimeoutSeconds) * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close stops running workers, drains supervisors and sinks, and releases
// clients. Workers observe cancellation through the orchestrator's base
// context; their jobs finish with synthesized terminal outcomes.
func (a *App) Close(ctx context.Context) error {
	if a.cancelWorkers != nil {
		a.cancelWorkers()
	}
	if a.orchestrator != nil {
		drained := make(chan struct{})
		go func() {
			a.orchestrator.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			a.logger.Warn("supervisors still running at shutdown deadline")
		}
	}
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.res != nil {
		a.res.close()
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

// Build creates the application's dependencies. The caller owns logger.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("runner", cfg.Orchestrator.Runner),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("database", cfg.Database.DSN != ""),
	)

	res, err := openResources(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.res = res

	emitter, err := app.setupProgress()
	if err != nil {
		res.close()
		return nil, err
	}

	launcher, err := app.setupLauncher()
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	clock := system.New()
	reg := registry.New(uuid.New(), clock)
	baseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	app.cancelWorkers = cancel
	app.orchestrator = orchestrator.New(reg, launcher, emitter, clock, orchestrator.Config{
		BaseContext: baseCtx,
		EventBuffer: cfg.Orchestrator.EventBuffer,
	}, logger)

	deps := api.Deps{
		Submitter: app.orchestrator,
		Jobs:      reg,
		Clock:     clock,
	}
	if res.db != nil {
		deps.Credentials = res.db
		deps.Targets = res.db
	}
	app.apiServer = api.NewServer(deps, *cfg, logger)
	return app, nil
}

func (a *App) setupLauncher() (scrape.Launcher, error) {
	switch a.cfg.Orchestrator.Runner {
	case config.RunnerProcess:
		l, err := process.New(process.Config{
			Command: a.cfg.Orchestrator.WorkerCommand,
			Args:    a.cfg.Orchestrator.WorkerArgs,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("process runner init failed: %w", err)
		}
		a.logger.Info("using process runner", zap.Strings("args", a.cfg.Orchestrator.WorkerArgs))
		return l, nil
	default:
		a.logger.Info("using in-process runner")
		return local.New(a.res.newWorker(), a.logger), nil
	}
}

func (a *App) setupProgress() (progress.Emitter, error) {
	if !a.cfg.Progress.Enabled {
		a.logger.Info("progress tracking disabled")
		return progress.NopEmitter{}, nil
	}
	var sinkList []progress.Sink
	if a.cfg.Progress.StoreEnabled && a.res.db != nil {
		sinkList = append(sinkList, progresssinks.NewStoreSink(a.res.db, a.logger.Named("progress_store")))
		a.logger.Debug("added progress store sink")
	}
	if a.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
		a.logger.Debug("added progress log sink")
	}
	if a.cfg.Progress.PrometheusEnabled {
		promSink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, fmt.Errorf("prometheus progress sink init failed: %w", err)
		}
		sinkList = append(sinkList, promSink)
		a.logger.Debug("added progress prometheus sink")
	}
	if len(sinkList) == 0 {
		a.logger.Warn("progress tracking enabled but no sinks configured")
		return progress.NopEmitter{}, nil
	}
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(a.cfg.Progress.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(a.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		Logger:         a.logger.Named("progress_hub"),
	}
	a.progressHub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return a.progressHub, nil
}
