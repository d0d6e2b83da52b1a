package queries

import (
	"context"
	"log/slog"
	"strings"

	"adbroker/contexts/media-buying/approval-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/approval-service/domain/errors"
	"adbroker/contexts/media-buying/approval-service/ports"
)

type ListTasksQuery struct {
	TenantID string
	Status   string
}

// ListTasksUseCase feeds the review surface: pending tasks per tenant, or
// the full history when no status filter is given.
type ListTasksUseCase struct {
	Tasks  ports.TaskRepository
	Logger *slog.Logger
}

func (uc ListTasksUseCase) Execute(ctx context.Context, query ListTasksQuery) ([]entities.Task, error) {
	if strings.TrimSpace(query.TenantID) == "" {
		return nil, domainerrors.ErrInvalidTaskInput
	}
	filter := ports.TaskFilter{TenantID: strings.TrimSpace(query.TenantID)}
	if strings.TrimSpace(query.Status) != "" {
		filter.Status = entities.TaskStatus(strings.TrimSpace(query.Status))
	}
	return uc.Tasks.ListTasks(ctx, filter)
}
