package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"adbroker/contexts/media-buying/approval-service/application/commands"
	"adbroker/contexts/media-buying/approval-service/application/queries"
	"adbroker/contexts/media-buying/approval-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/approval-service/domain/errors"
	httptransport "adbroker/contexts/media-buying/approval-service/transport/http"
)

type Handler struct {
	CreateTask  commands.CreateTaskUseCase
	ResolveTask commands.ResolveTaskUseCase
	GetTask     queries.GetTaskUseCase
	ListTasks   queries.ListTasksUseCase
	Logger      *slog.Logger
}

func (h Handler) CreateTaskHandler(ctx context.Context, tenantID string, req httptransport.CreateTaskRequest) (httptransport.CreateTaskResponse, error) {
	dueDate, err := time.Parse(time.RFC3339, req.DueDate)
	if err != nil {
		return httptransport.CreateTaskResponse{}, domainerrors.ErrInvalidTaskInput
	}
	task, err := h.CreateTask.Execute(ctx, commands.CreateTaskCommand{
		TenantID:   tenantID,
		Type:       entities.TaskType(req.TaskType),
		SubjectRef: req.SubjectRef,
		DueDate:    dueDate,
	})
	if err != nil {
		return httptransport.CreateTaskResponse{}, err
	}
	return httptransport.CreateTaskResponse{Task: mapTask(task)}, nil
}

func (h Handler) ResolveTaskHandler(ctx context.Context, actorID string, taskID string, req httptransport.ResolveTaskRequest) (httptransport.ResolveTaskResponse, error) {
	task, err := h.ResolveTask.Execute(ctx, commands.ResolveTaskCommand{
		TaskID:          taskID,
		ExpectedVersion: req.ExpectedVersion,
		Decision:        commands.Decision(req.Decision),
		ActorID:         actorID,
		Reason:          req.Reason,
	})
	if err != nil {
		return httptransport.ResolveTaskResponse{}, err
	}
	return httptransport.ResolveTaskResponse{Task: mapTask(task)}, nil
}

func (h Handler) GetTaskHandler(ctx context.Context, taskID string) (httptransport.GetTaskResponse, error) {
	task, err := h.GetTask.Execute(ctx, taskID)
	if err != nil {
		return httptransport.GetTaskResponse{}, err
	}
	return httptransport.GetTaskResponse{Task: mapTask(task)}, nil
}

func (h Handler) ListTasksHandler(ctx context.Context, tenantID string, status string) (httptransport.ListTasksResponse, error) {
	items, err := h.ListTasks.Execute(ctx, queries.ListTasksQuery{
		TenantID: tenantID,
		Status:   status,
	})
	if err != nil {
		return httptransport.ListTasksResponse{}, err
	}
	result := make([]httptransport.TaskDTO, 0, len(items))
	for _, item := range items {
		result = append(result, mapTask(item))
	}
	return httptransport.ListTasksResponse{Items: result}, nil
}

func mapTask(task entities.Task) httptransport.TaskDTO {
	return httptransport.TaskDTO{
		TaskID:         task.TaskID,
		TenantID:       task.TenantID,
		TaskType:       string(task.Type),
		SubjectRef:     task.SubjectRef,
		Status:         string(task.Status),
		Version:        task.Version,
		DueDate:        task.DueDate.UTC().Format(time.RFC3339),
		DecidedBy:      task.DecidedBy,
		DecisionReason: task.DecisionReason,
		CreatedAt:      task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      task.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
