package commands

import (
	"context"
	"log/slog"
	"strings"

	application "adbroker/contexts/media-buying/approval-service/application"
	"adbroker/contexts/media-buying/approval-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/approval-service/domain/errors"
	"adbroker/contexts/media-buying/approval-service/ports"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type ResolveTaskCommand struct {
	TaskID          string
	ExpectedVersion int
	Decision        Decision
	ActorID         string
	Reason          string
}

type ResolveTaskUseCase struct {
	Tasks  ports.TaskRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// Execute applies an approve/reject decision through the store's
// compare-and-swap contract. A stale ExpectedVersion surfaces as
// ErrVersionConflict and is never retried here: the reviewer's decision may
// itself be stale and they must re-read first.
func (uc ResolveTaskUseCase) Execute(ctx context.Context, cmd ResolveTaskCommand) (entities.Task, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.TaskID) == "" || cmd.ExpectedVersion < 1 {
		return entities.Task{}, domainerrors.ErrInvalidTaskInput
	}
	if strings.TrimSpace(cmd.ActorID) == "" {
		return entities.Task{}, domainerrors.ErrInvalidTaskInput
	}

	var status entities.TaskStatus
	switch cmd.Decision {
	case DecisionApprove:
		status = entities.TaskStatusApproved
	case DecisionReject:
		status = entities.TaskStatusRejected
	default:
		return entities.Task{}, domainerrors.ErrInvalidDecision
	}

	now := uc.Clock.Now().UTC()
	task, err := uc.Tasks.ResolveTaskCAS(ctx, strings.TrimSpace(cmd.TaskID), cmd.ExpectedVersion, ports.TaskResolution{
		Status:         status,
		DecidedBy:      strings.TrimSpace(cmd.ActorID),
		DecisionReason: strings.TrimSpace(cmd.Reason),
		DecidedAt:      now,
	})
	if err != nil {
		return entities.Task{}, err
	}

	if uc.Outbox != nil {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Task{}, err
		}
		envelope, err := taskEnvelope(eventID, taskEventType(task.Status), task, now)
		if err != nil {
			return entities.Task{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return entities.Task{}, err
		}
	}

	logger.Info("approval task resolved",
		"event", "approval_task_resolved",
		"module", "media-buying/approval-service",
		"layer", "application",
		"task_id", task.TaskID,
		"status", string(task.Status),
		"version", task.Version,
		"decided_by", task.DecidedBy,
	)
	return task, nil
}
