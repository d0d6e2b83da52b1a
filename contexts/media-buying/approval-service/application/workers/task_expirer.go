package workers

import (
	"context"
	"log/slog"
	"time"

	application "adbroker/contexts/media-buying/approval-service/application"
	"adbroker/contexts/media-buying/approval-service/application/commands"
	"adbroker/contexts/media-buying/approval-service/ports"
)

// TaskExpirer sweeps pending tasks that crossed due_date. Each expiry is a
// per-row CAS in the store, so a concurrently racing resolver either wins
// cleanly or observes a version conflict.
type TaskExpirer struct {
	Tasks     ports.TaskRepository
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	BatchSize int
	Disabled  bool
	Logger    *slog.Logger
}

func (e TaskExpirer) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(e.Logger)
	if e.Disabled {
		logger.Info("task expiry sweep disabled by feature flag",
			"event", "approval_task_expiry_disabled",
			"module", "media-buying/approval-service",
			"layer", "worker",
		)
		return nil
	}
	now := time.Now().UTC()
	if e.Clock != nil {
		now = e.Clock.Now().UTC()
	}
	limit := e.BatchSize
	if limit <= 0 {
		limit = 100
	}

	expired, err := e.Tasks.ExpireDueTasks(ctx, now, limit)
	if err != nil {
		logger.Error("task expiry sweep failed",
			"event", "approval_task_expiry_failed",
			"module", "media-buying/approval-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, task := range expired {
		if e.Outbox == nil {
			break
		}
		eventID, err := e.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		envelope, err := commands.TaskEnvelope(eventID, task, now)
		if err != nil {
			return err
		}
		if err := e.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return err
		}
	}

	if len(expired) > 0 {
		logger.Info("task expiry sweep completed",
			"event", "approval_task_expiry_completed",
			"module", "media-buying/approval-service",
			"layer", "worker",
			"expired_count", len(expired),
		)
	}
	return nil
}
