package approvalservice

import (
	"log/slog"

	httpadapter "adbroker/contexts/media-buying/approval-service/adapters/http"
	"adbroker/contexts/media-buying/approval-service/adapters/memory"
	"adbroker/contexts/media-buying/approval-service/application/commands"
	"adbroker/contexts/media-buying/approval-service/application/queries"
	"adbroker/contexts/media-buying/approval-service/domain/entities"
	"adbroker/contexts/media-buying/approval-service/ports"
)

type Module struct {
	Handler     httpadapter.Handler
	CreateTask  commands.CreateTaskUseCase
	ResolveTask commands.ResolveTaskUseCase
	Store       *memory.Store
}

type Dependencies struct {
	Tasks  ports.TaskRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	createTask := commands.CreateTaskUseCase{
		Tasks:  deps.Tasks,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	resolveTask := commands.ResolveTaskUseCase{
		Tasks:  deps.Tasks,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	getTask := queries.GetTaskUseCase{
		Tasks:  deps.Tasks,
		Logger: deps.Logger,
	}
	listTasks := queries.ListTasksUseCase{
		Tasks:  deps.Tasks,
		Logger: deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			CreateTask:  createTask,
			ResolveTask: resolveTask,
			GetTask:     getTask,
			ListTasks:   listTasks,
			Logger:      deps.Logger,
		},
		CreateTask:  createTask,
		ResolveTask: resolveTask,
	}
}

func NewInMemoryModule(seed []entities.Task, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Tasks:  store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}
