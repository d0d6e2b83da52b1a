package signalservice

import (
	"log/slog"
	"time"

	httpadapter "adbroker/contexts/media-buying/signal-service/adapters/http"
	"adbroker/contexts/media-buying/signal-service/adapters/memory"
	"adbroker/contexts/media-buying/signal-service/application/commands"
	"adbroker/contexts/media-buying/signal-service/application/queries"
	"adbroker/contexts/media-buying/signal-service/application/workers"
	"adbroker/contexts/media-buying/signal-service/domain/entities"
	"adbroker/contexts/media-buying/signal-service/ports"
)

type Module struct {
	Handler            httpadapter.Handler
	ScheduleActivation commands.ScheduleActivationUseCase
	RecordWebhook      commands.RecordWebhookUseCase
	ExpireActivations  commands.ExpireActivationsUseCase
	PollReconciler     workers.PollReconciler
	Store              *memory.Store
	Gateway            *memory.ScriptedGateway
}

type Dependencies struct {
	Activations     ports.ActivationRepository
	Gateway         ports.AdapterGateway
	Outbox          ports.OutboxWriter
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	PollWorkers     int
	AdapterTimeout  time.Duration
	PollingDisabled bool
	Logger          *slog.Logger
}

func NewModule(deps Dependencies) Module {
	schedule := commands.ScheduleActivationUseCase{
		Activations: deps.Activations,
		Clock:       deps.Clock,
		IDGen:       deps.IDGen,
		Logger:      deps.Logger,
	}
	webhook := commands.RecordWebhookUseCase{
		Activations: deps.Activations,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGen:       deps.IDGen,
		Logger:      deps.Logger,
	}
	expire := commands.ExpireActivationsUseCase{
		Activations: deps.Activations,
		Clock:       deps.Clock,
		Logger:      deps.Logger,
	}
	getActivation := queries.GetActivationUseCase{Activations: deps.Activations}
	listActivations := queries.ListActivationsByMediaBuyUseCase{Activations: deps.Activations}
	reconciler := workers.PollReconciler{
		Activations:    deps.Activations,
		Gateway:        deps.Gateway,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Workers:        deps.PollWorkers,
		AdapterTimeout: deps.AdapterTimeout,
		Disabled:       deps.PollingDisabled,
		Logger:         deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			RecordWebhook:   webhook,
			GetActivation:   getActivation,
			ListActivations: listActivations,
			Logger:          deps.Logger,
		},
		ScheduleActivation: schedule,
		RecordWebhook:      webhook,
		ExpireActivations:  expire,
		PollReconciler:     reconciler,
	}
}

func NewInMemoryModule(seed []entities.SignalActivation, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	gateway := memory.NewScriptedGateway()
	module := NewModule(Dependencies{
		Activations: store,
		Gateway:     gateway,
		Outbox:      store,
		Clock:       store,
		IDGen:       store,
		Logger:      logger,
	})
	module.Store = store
	module.Gateway = gateway
	return module
}
