package contextservice

import (
	"log/slog"

	httpadapter "adbroker/contexts/media-buying/context-service/adapters/http"
	"adbroker/contexts/media-buying/context-service/adapters/memory"
	"adbroker/contexts/media-buying/context-service/application"
	"adbroker/contexts/media-buying/context-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repo   ports.Repository
	Clock  ports.Clock
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:   deps.Repo,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
		Service: service,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repo:   store,
		Clock:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}
