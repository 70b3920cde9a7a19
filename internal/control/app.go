// Package control wires the delivery components into a runnable application.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"go.uber.org/multierr"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/clock"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/config"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/worker"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/queue"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/recovery"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/workerpool"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/health"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/notify"
	redisclient "github.com/HypeFluxAI/Thinkus-sub007/internal/infra/redis"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage/memory"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage/postgres"
)

// App is the main application struct that manages the delivery lifecycle.
type App struct {
	cfg          *config.AppConfig
	queue        *queue.Manager
	recovery     *recovery.Orchestrator
	service      *Service
	runner       *workerpool.Runner
	pruner       *worker.Pruner
	checkpointer *worker.Checkpointer
	snapshots    storage.SnapshotRepository
	healthMon    *health.Monitor
	healthServer *health.Server
	grpcServer   *health.GRPCServer
	db           *postgres.DB
	redisClient  *redisclient.Client
	amqp         *notify.AMQPNotifier
	log          *slog.Logger

	cancelRun        context.CancelFunc
	cancelBackground context.CancelFunc
	runWG            sync.WaitGroup
	backgroundWG     sync.WaitGroup
}

// NewApp creates a new App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, log: slog.Default().With("component", "app")}
	clk := clock.Real()

	// 1. Initialize Storage
	snapshots, backends, err := a.initStorage(ctx)
	if err != nil {
		a.closeInfra()
		return nil, err
	}
	a.snapshots = snapshots

	// 2. Initialize Notifiers
	notifiers := notify.Multi{notify.NewLogNotifier()}
	if cfg.Notify.URL != "" {
		a.amqp, err = notify.NewAMQPNotifier(cfg.Notify)
		if err != nil {
			a.closeInfra()
			return nil, err
		}
		notifiers = append(notifiers, a.amqp)
		a.log.Info("Publishing notifications to RabbitMQ", "exchange", cfg.Notify.Exchange)
	}

	// 3. Initialize Queue and Recovery
	a.queue = queue.NewManager(queue.Config{
		MaxConcurrent: cfg.Queue.MaxConcurrent,
		MaxRetries:    *cfg.Queue.MaxRetries,
		RetryDelay:    cfg.Queue.RetryDelay,
		Durations:     cfg.Queue.Durations,
	}, clk, nil, nil)

	a.recovery = recovery.NewOrchestrator(recovery.Config{
		Policy: recovery.Policy{
			MaxTotalAttempts: cfg.Recovery.MaxTotalAttempts,
			AutoFallback:     *cfg.Recovery.AutoFallback,
		},
		Seed: cfg.Recovery.JitterSeed,
	}, recovery.NewActionExecutor(notifiers, cfg.Recovery.SupportActor), clk)

	a.service = NewService(a.queue, a.recovery)

	// 4. Restore the last checkpoint before workers are registered
	snap, err := snapshots.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrSnapshotNotFound):
		a.log.Info("No checkpoint found, starting empty")
	case err != nil:
		a.closeInfra()
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	default:
		if err := a.service.Restore(snap); err != nil {
			a.closeInfra()
			return nil, err
		}
		a.log.Info("Restored checkpoint",
			"taken_at", snap.TakenAt,
			"jobs", len(snap.Jobs),
			"sessions", len(snap.Sessions),
		)
	}

	for _, w := range cfg.Workers {
		if _, err := a.queue.RegisterWorker(w.ID, w.Name, w.Capabilities); err != nil {
			if errors.Is(err, queue.ErrWorkerExists) {
				continue
			}
			a.closeInfra()
			return nil, fmt.Errorf("failed to register worker %s: %w", w.ID, err)
		}
	}

	// 5. Initialize Worker Pool
	executor := workerpool.NewSimulatedExecutor(cfg.Executor.StepDelay, clk)
	a.runner = workerpool.NewRunner(a.queue, a.recovery, executor, cfg.Queue.Stages)

	// 6. Initialize Background Workers
	a.pruner = worker.NewPruner(cfg.Queue.RetentionPeriod, a.queue)
	a.checkpointer = worker.NewCheckpointer(
		a.service.Snapshot,
		snapshots,
		cfg.Checkpoint.Backend,
		cfg.Checkpoint.Interval,
	)

	// 7. Initialize Health
	a.healthMon = health.NewMonitor(a.queue, backends)
	a.healthServer = health.NewServer(a.healthMon, a.service, cfg.Server.Port)
	if cfg.Server.GRPCPort > 0 {
		a.grpcServer = health.NewGRPCServer(a.healthMon, cfg.Server.GRPCPort)
	}

	return a, nil
}

func (a *App) initStorage(ctx context.Context) (storage.SnapshotRepository, map[string]health.Checker, error) {
	backends := make(map[string]health.Checker)

	switch a.cfg.Checkpoint.Backend {
	case config.BackendPostgres:
		db, err := postgres.NewDB(ctx, a.cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init db: %w", err)
		}
		a.db = db
		if err := db.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		backends["postgres"] = db
		a.log.Info("Using PostgreSQL checkpoints")
		return postgres.NewSnapshotRepo(db), backends, nil

	case config.BackendRedis:
		client, err := redisclient.NewClient(a.cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.redisClient = client
		backends["redis"] = client
		a.log.Info("Using Redis checkpoints")
		return redisclient.NewSnapshotRepo(client), backends, nil

	default:
		a.log.Info("Using Memory checkpoints")
		return memory.NewSnapshotRepo(), backends, nil
	}
}

// Service returns the control surface used by the HTTP server.
func (a *App) Service() *Service {
	return a.service
}

// Start starts every component. It does not block.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancelRun := context.WithCancel(ctx)
	bgCtx, cancelBackground := context.WithCancel(ctx)
	a.cancelRun = cancelRun
	a.cancelBackground = cancelBackground

	// Start Health Server
	go func() {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()
	a.log.Info("Health server listening", "port", a.cfg.Server.Port)

	if a.grpcServer != nil {
		go func() {
			if err := a.grpcServer.Start(bgCtx); err != nil {
				a.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start DB Metrics Collector
	if a.db != nil {
		a.db.StartMetricsCollector(bgCtx)
	}

	// Start Worker Pool
	a.runWG.Go(func() {
		if err := a.runner.Run(runCtx); err != nil {
			a.log.Error("Worker pool stopped with error", "error", err)
		}
	})

	// Start Pruner and Checkpointer
	a.backgroundWG.Go(func() { a.pruner.Start(bgCtx) })
	a.backgroundWG.Go(func() { a.checkpointer.Start(bgCtx) })

	a.log.Info("Delivery orchestrator started",
		"workers", len(a.cfg.Workers),
		"max_concurrent", a.cfg.Queue.MaxConcurrent,
		"backend", a.cfg.Checkpoint.Backend,
	)
	return nil
}

// Stop stops the app. Running stages are cancelled before the final
// checkpoint is written.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping delivery orchestrator...")

	var err error
	err = multierr.Append(err, a.healthServer.Stop(ctx))
	if a.grpcServer != nil {
		a.grpcServer.Stop()
	}

	if a.cancelRun != nil {
		a.cancelRun()
		a.runWG.Wait()
	}
	if a.cancelBackground != nil {
		a.cancelBackground()
		a.backgroundWG.Wait()
	}

	a.queue.Close()
	return multierr.Append(err, a.closeInfra())
}

func (a *App) closeInfra() error {
	var err error
	if a.amqp != nil {
		err = multierr.Append(err, a.amqp.Close())
	}
	if a.redisClient != nil {
		err = multierr.Append(err, a.redisClient.Close())
	}
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	return err
}
