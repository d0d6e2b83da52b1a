package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "adbroker/contexts/media-buying/approval-service/application"
	"adbroker/contexts/media-buying/approval-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/approval-service/domain/errors"
	"adbroker/contexts/media-buying/approval-service/ports"
)

type CreateTaskCommand struct {
	TenantID   string
	Type       entities.TaskType
	SubjectRef string
	DueDate    time.Time
}

type CreateTaskUseCase struct {
	Tasks  ports.TaskRepository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc CreateTaskUseCase) Execute(ctx context.Context, cmd CreateTaskCommand) (entities.Task, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.TenantID) == "" || strings.TrimSpace(cmd.SubjectRef) == "" {
		return entities.Task{}, domainerrors.ErrInvalidTaskInput
	}
	if !entities.IsSupportedTaskType(cmd.Type) {
		return entities.Task{}, domainerrors.ErrInvalidTaskInput
	}

	now := uc.Clock.Now().UTC()
	if !cmd.DueDate.UTC().After(now) {
		return entities.Task{}, domainerrors.ErrInvalidTaskInput
	}

	taskID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Task{}, err
	}
	task := entities.Task{
		TaskID:     taskID,
		TenantID:   strings.TrimSpace(cmd.TenantID),
		Type:       cmd.Type,
		SubjectRef: strings.TrimSpace(cmd.SubjectRef),
		Status:     entities.TaskStatusPending,
		Version:    1,
		DueDate:    cmd.DueDate.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.Tasks.CreateTask(ctx, task); err != nil {
		return entities.Task{}, err
	}

	logger.Info("approval task created",
		"event", "approval_task_created",
		"module", "media-buying/approval-service",
		"layer", "application",
		"task_id", task.TaskID,
		"task_type", string(task.Type),
		"subject_ref", task.SubjectRef,
		"due_date", task.DueDate.Format(time.RFC3339),
	)
	return task, nil
}
