package queries

import (
	"context"
	"log/slog"
	"strings"

	"adbroker/contexts/media-buying/approval-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/approval-service/domain/errors"
	"adbroker/contexts/media-buying/approval-service/ports"
)

type GetTaskUseCase struct {
	Tasks  ports.TaskRepository
	Logger *slog.Logger
}

func (uc GetTaskUseCase) Execute(ctx context.Context, taskID string) (entities.Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return entities.Task{}, domainerrors.ErrInvalidTaskInput
	}
	return uc.Tasks.GetTask(ctx, strings.TrimSpace(taskID))
}
