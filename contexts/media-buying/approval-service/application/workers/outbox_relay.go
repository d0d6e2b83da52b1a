package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "adbroker/contexts/media-buying/approval-service/application"
	"adbroker/contexts/media-buying/approval-service/ports"
)

// OutboxRelay publishes pending approval outbox rows to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("approval outbox list failed",
			"event", "approval_outbox_list_failed",
			"module", "media-buying/approval-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("approval outbox decode failed",
				"event", "approval_outbox_decode_failed",
				"module", "media-buying/approval-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}

		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("approval outbox publish failed",
				"event", "approval_outbox_publish_failed",
				"module", "media-buying/approval-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("approval outbox mark published failed",
				"event", "approval_outbox_mark_published_failed",
				"module", "media-buying/approval-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("approval outbox relay cycle completed",
			"event", "approval_outbox_relay_completed",
			"module", "media-buying/approval-service",
			"layer", "worker",
			"published_count", len(pending),
		)
	}
	return nil
}
