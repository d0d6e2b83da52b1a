package mediabuyservice

import (
	"log/slog"
	"time"

	httpadapter "adbroker/contexts/media-buying/mediabuy-service/adapters/http"
	"adbroker/contexts/media-buying/mediabuy-service/adapters/memory"
	"adbroker/contexts/media-buying/mediabuy-service/application/commands"
	"adbroker/contexts/media-buying/mediabuy-service/application/queries"
	"adbroker/contexts/media-buying/mediabuy-service/application/workers"
	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

type Module struct {
	Handler          httpadapter.Handler
	CreateMediaBuy   commands.CreateMediaBuyUseCase
	AttachCreative   commands.AttachCreativeUseCase
	ActivateMediaBuy commands.ActivateMediaBuyUseCase
	FailMediaBuy     commands.FailMediaBuyUseCase
	FlightSweeper    workers.FlightSweeper
	Store            *memory.Store
	Gateway          *memory.FakeGateway
	Policy           *memory.StaticPolicyProvider
}

type Dependencies struct {
	Buys           ports.MediaBuyRepository
	Gateway        ports.AdapterGateway
	Approvals      ports.ApprovalQueue
	Signals        ports.SignalScheduler
	Activations    ports.ActivationStatusSource
	Policy         ports.TenantPolicyProvider
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	ReviewWindow   time.Duration
	AdapterTimeout time.Duration
	SweepDisabled  bool
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	create := commands.CreateMediaBuyUseCase{
		Buys:    deps.Buys,
		Signals: deps.Signals,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
	}
	attach := commands.AttachCreativeUseCase{
		Buys:         deps.Buys,
		Approvals:    deps.Approvals,
		Policy:       deps.Policy,
		Outbox:       deps.Outbox,
		Clock:        deps.Clock,
		IDGen:        deps.IDGen,
		ReviewWindow: deps.ReviewWindow,
		Logger:       deps.Logger,
	}
	activate := commands.ActivateMediaBuyUseCase{
		Buys:           deps.Buys,
		Gateway:        deps.Gateway,
		Activations:    deps.Activations,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		AdapterTimeout: deps.AdapterTimeout,
		Logger:         deps.Logger,
	}
	fail := commands.FailMediaBuyUseCase{
		Buys:   deps.Buys,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	pause := commands.PauseMediaBuyUseCase{
		Buys:   deps.Buys,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	resume := commands.ResumeMediaBuyUseCase{
		Buys:   deps.Buys,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	getBuy := queries.GetMediaBuyUseCase{Buys: deps.Buys}
	listBuys := queries.ListMediaBuysUseCase{Buys: deps.Buys}
	getDelivery := queries.GetDeliveryUseCase{
		Buys:           deps.Buys,
		Gateway:        deps.Gateway,
		Clock:          deps.Clock,
		AdapterTimeout: deps.AdapterTimeout,
	}
	sweeper := workers.FlightSweeper{
		Buys:           deps.Buys,
		Gateway:        deps.Gateway,
		Signals:        deps.Signals,
		Fail:           fail,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		AdapterTimeout: deps.AdapterTimeout,
		Disabled:       deps.SweepDisabled,
		Logger:         deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			CreateMediaBuy:   create,
			AttachCreative:   attach,
			ActivateMediaBuy: activate,
			PauseMediaBuy:    pause,
			ResumeMediaBuy:   resume,
			GetMediaBuy:      getBuy,
			ListMediaBuys:    listBuys,
			GetDelivery:      getDelivery,
			Logger:           deps.Logger,
		},
		CreateMediaBuy:   create,
		AttachCreative:   attach,
		ActivateMediaBuy: activate,
		FailMediaBuy:     fail,
		FlightSweeper:    sweeper,
	}
}

func NewInMemoryModule(seed []entities.MediaBuy, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	gateway := memory.NewFakeGateway()
	policy := memory.NewStaticPolicyProvider(ports.ApprovalModeManual)
	module := NewModule(Dependencies{
		Buys:    store,
		Gateway: gateway,
		Policy:  policy,
		Outbox:  store,
		Clock:   store,
		IDGen:   store,
		Logger:  logger,
	})
	module.Store = store
	module.Gateway = gateway
	module.Policy = policy
	return module
}
