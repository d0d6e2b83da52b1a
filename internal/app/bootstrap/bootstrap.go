package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	approvalservice "adbroker/contexts/media-buying/approval-service"
	approvalpg "adbroker/contexts/media-buying/approval-service/adapters/postgres"
	approvalworkers "adbroker/contexts/media-buying/approval-service/application/workers"
	contextservice "adbroker/contexts/media-buying/context-service"
	contextpg "adbroker/contexts/media-buying/context-service/adapters/postgres"
	mediabuyservice "adbroker/contexts/media-buying/mediabuy-service"
	mediabuymemory "adbroker/contexts/media-buying/mediabuy-service/adapters/memory"
	mediabuypg "adbroker/contexts/media-buying/mediabuy-service/adapters/postgres"
	mediabuyworkers "adbroker/contexts/media-buying/mediabuy-service/application/workers"
	mediabuyports "adbroker/contexts/media-buying/mediabuy-service/ports"
	signalservice "adbroker/contexts/media-buying/signal-service"
	signalmemory "adbroker/contexts/media-buying/signal-service/adapters/memory"
	signalpg "adbroker/contexts/media-buying/signal-service/adapters/postgres"
	signalworkers "adbroker/contexts/media-buying/signal-service/application/workers"
	"adbroker/internal/platform/config"
	"adbroker/internal/platform/db"
	"adbroker/internal/platform/httpserver"
	"adbroker/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres          *db.Postgres
	taskExpirer       approvalworkers.TaskExpirer
	approvalRelay     approvalworkers.OutboxRelay
	pollReconciler    signalworkers.PollReconciler
	signalRelay       signalworkers.OutboxRelay
	flightSweeper     mediabuyworkers.FlightSweeper
	mediabuyRelay     mediabuyworkers.OutboxRelay
	taskResolved      mediabuyworkers.TaskResolvedConsumer
	activationResults mediabuyworkers.ActivationResultConsumer
	pollInterval      time.Duration
	logger            *slog.Logger
}

type modules struct {
	approval approvalservice.Module
	signal   signalservice.Module
	mediabuy mediabuyservice.Module
	contexts contextservice.Module

	approvalRepo *approvalpg.Repository
	signalRepo   *signalpg.Repository
	mediabuyRepo *mediabuypg.Repository
}

func buildModules(cfg config.Config, pg *db.Postgres, logger *slog.Logger) modules {
	adapterTimeout := time.Duration(cfg.AdapterTimeoutMS) * time.Millisecond

	approvalRepo := approvalpg.NewRepository(pg.DB, logger)
	approvalModule := approvalservice.NewModule(approvalservice.Dependencies{
		Tasks:  approvalRepo,
		Outbox: approvalRepo,
		Clock:  approvalpg.SystemClock{},
		IDGen:  approvalpg.UUIDGenerator{},
		Logger: logger,
	})

	signalRepo := signalpg.NewRepository(pg.DB, logger)
	// The ad-server client is in-process while the external backend
	// integration is finalized, mirroring the messaging setup.
	signalGateway := signalmemory.NewScriptedGateway()
	signalModule := signalservice.NewModule(signalservice.Dependencies{
		Activations:     signalRepo,
		Gateway:         signalGateway,
		Outbox:          signalRepo,
		Clock:           signalpg.SystemClock{},
		IDGen:           signalpg.UUIDGenerator{},
		PollWorkers:     cfg.SignalPollWorkers,
		AdapterTimeout:  adapterTimeout,
		PollingDisabled: !cfg.EnableSignalPolling,
		Logger:          logger,
	})

	signalBridge := signalSchedulerBridge{
		schedule: signalModule.ScheduleActivation,
		expire:   signalModule.ExpireActivations,
	}

	mediabuyRepo := mediabuypg.NewRepository(pg.DB, logger)
	mediabuyGateway := mediabuymemory.NewFakeGateway()
	mediabuyModule := mediabuyservice.NewModule(mediabuyservice.Dependencies{
		Buys:           mediabuyRepo,
		Gateway:        mediabuyGateway,
		Approvals:      approvalQueueBridge{create: approvalModule.CreateTask},
		Signals:        signalBridge,
		Activations:    activationStatusBridge{list: signalModule.Handler.ListActivations},
		Policy:         mediabuymemory.NewStaticPolicyProvider(mediabuyports.ApprovalModeManual),
		Outbox:         mediabuyRepo,
		Clock:          mediabuypg.SystemClock{},
		IDGen:          mediabuypg.UUIDGenerator{},
		ReviewWindow:   time.Duration(cfg.ReviewWindowHours) * time.Hour,
		AdapterTimeout: adapterTimeout,
		SweepDisabled:  !cfg.EnableFlightSweep,
		Logger:         logger,
	})

	contextModule := contextservice.NewModule(contextservice.Dependencies{
		Repo:   contextpg.NewRepository(pg.DB, logger),
		Clock:  contextpg.SystemClock{},
		Logger: logger,
	})

	return modules{
		approval:     approvalModule,
		signal:       signalModule,
		mediabuy:     mediabuyModule,
		contexts:     contextModule,
		approvalRepo: approvalRepo,
		signalRepo:   signalRepo,
		mediabuyRepo: mediabuyRepo,
	}
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	mods := buildModules(cfg, pg, logger)
	server := httpserver.New(
		mods.approval,
		mods.mediabuy,
		mods.signal,
		mods.contexts,
		logger,
		normalizeAddr(cfg.HTTPPort),
	)
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	mods := buildModules(cfg, pg, logger)
	return &WorkerApp{
		postgres: pg,
		taskExpirer: approvalworkers.TaskExpirer{
			Tasks:    mods.approvalRepo,
			Outbox:   mods.approvalRepo,
			Clock:    approvalpg.SystemClock{},
			IDGen:    approvalpg.UUIDGenerator{},
			Disabled: !cfg.EnableTaskExpiry,
			Logger:   logger,
		},
		approvalRelay: approvalworkers.OutboxRelay{
			Outbox:    mods.approvalRepo,
			Publisher: kafka,
			Clock:     approvalpg.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		pollReconciler: mods.signal.PollReconciler,
		signalRelay: signalworkers.OutboxRelay{
			Outbox:    mods.signalRepo,
			Publisher: kafka,
			Clock:     signalpg.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		flightSweeper: mods.mediabuy.FlightSweeper,
		mediabuyRelay: mediabuyworkers.OutboxRelay{
			Outbox:    mods.mediabuyRepo,
			Publisher: kafka,
			Clock:     mediabuypg.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		taskResolved: mediabuyworkers.TaskResolvedConsumer{
			Subscriber:    kafka,
			Buys:          mods.mediabuyRepo,
			Activate:      mods.mediabuy.ActivateMediaBuy,
			Fail:          mods.mediabuy.FailMediaBuy,
			Dedup:         mods.mediabuyRepo,
			Clock:         mediabuypg.SystemClock{},
			ConsumerGroup: "mediabuy-service-task-resolved-cg",
			DedupTTL:      7 * 24 * time.Hour,
			Disabled:      !cfg.EnableTaskConsumer,
			Logger:        logger,
		},
		activationResults: mediabuyworkers.ActivationResultConsumer{
			Subscriber:    kafka,
			Activate:      mods.mediabuy.ActivateMediaBuy,
			Fail:          mods.mediabuy.FailMediaBuy,
			Dedup:         mods.mediabuyRepo,
			Clock:         mediabuypg.SystemClock{},
			ConsumerGroup: "mediabuy-service-activation-result-cg",
			DedupTTL:      7 * 24 * time.Hour,
			Disabled:      !cfg.EnableActivationConsumer,
			Logger:        logger,
		},
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.taskResolved.Start(ctx); err != nil {
		return err
	}
	if err := w.activationResults.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.taskExpirer.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.pollReconciler.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.flightSweeper.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.approvalRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.signalRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.mediabuyRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
