package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "adbroker/contexts/media-buying/mediabuy-service/application"
	"adbroker/contexts/media-buying/mediabuy-service/application/commands"
	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

const (
	taskApprovedTopic = "task.approved"
	taskRejectedTopic = "task.rejected"
	taskExpiredTopic  = "task.expired"

	defaultTaskConsumerGroup = "mediabuy-service-task-resolved-cg"

	mediaBuySubjectPrefix = "media_buy/"
)

// TaskResolvedConsumer applies approval task outcomes to the gated buy.
// Approved additionally re-attempts go-live; retryable adapter errors and
// unmet activation gates are tolerated, the operator can retry later.
// Expired leaves the buy blocked in pending_approval, a new task must be
// opened to retry.
type TaskResolvedConsumer struct {
	Subscriber    ports.EventSubscriber
	Buys          ports.MediaBuyRepository
	Activate      commands.ActivateMediaBuyUseCase
	Fail          commands.FailMediaBuyUseCase
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c TaskResolvedConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("task outcome consumer disabled by feature flag",
			"event", "mediabuy_task_consumer_disabled",
			"module", "media-buying/mediabuy-service",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultTaskConsumerGroup
	}
	for _, topic := range []string{taskApprovedTopic, taskRejectedTopic, taskExpiredTopic} {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handleTaskOutcome); err != nil {
			return err
		}
	}
	return nil
}

func (c TaskResolvedConsumer) handleTaskOutcome(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), now.Add(c.dedupTTL()))
	if err != nil {
		return err
	}
	if alreadyProcessed {
		logger.Debug("task outcome already processed",
			"event", "mediabuy_task_outcome_replayed",
			"module", "media-buying/mediabuy-service",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		TaskID     string `json:"task_id"`
		SubjectRef string `json:"subject_ref"`
		Status     string `json:"status"`
		DecidedBy  string `json:"decided_by"`
		Reason     string `json:"reason"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode task outcome payload: %w", err)
	}
	mediaBuyID, ok := strings.CutPrefix(strings.TrimSpace(payload.SubjectRef), mediaBuySubjectPrefix)
	if !ok || mediaBuyID == "" {
		// Tasks gating other subjects are not ours.
		return nil
	}

	switch payload.Status {
	case "approved":
		return c.applyApproved(ctx, mediaBuyID, now, event.EventID)
	case "rejected":
		return c.applyRejected(ctx, mediaBuyID, payload.Reason, payload.DecidedBy)
	case "expired":
		logger.Info("approval task expired, media buy stays blocked",
			"event", "mediabuy_task_expired",
			"module", "media-buying/mediabuy-service",
			"layer", "worker",
			"media_buy_id", mediaBuyID,
			"task_id", payload.TaskID,
		)
		return nil
	default:
		return fmt.Errorf("unknown task outcome status %q", payload.Status)
	}
}

func (c TaskResolvedConsumer) applyApproved(ctx context.Context, mediaBuyID string, now time.Time, eventID string) error {
	logger := application.ResolveLogger(c.Logger)
	if _, err := c.Buys.SetApprovalState(ctx, mediaBuyID, entities.ApprovalStateApproved, now); err != nil {
		if errors.Is(err, domainerrors.ErrMediaBuyNotFound) {
			return nil
		}
		return err
	}

	_, err := c.Activate.Execute(ctx, commands.ActivateMediaBuyCommand{
		MediaBuyID: mediaBuyID,
		Actor:      "system",
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAdapterRetryable) ||
			errors.Is(err, domainerrors.ErrSignalsNotReady) ||
			errors.Is(err, domainerrors.ErrStaleTransition) {
			logger.Info("activation deferred after approval",
				"event", "mediabuy_activation_deferred",
				"module", "media-buying/mediabuy-service",
				"layer", "worker",
				"media_buy_id", mediaBuyID,
				"event_id", eventID,
				"cause", err.Error(),
			)
			return nil
		}
		if errors.Is(err, domainerrors.ErrAdapterFatal) {
			// Execute already failed the buy atomically.
			return nil
		}
		return err
	}
	return nil
}

func (c TaskResolvedConsumer) applyRejected(ctx context.Context, mediaBuyID string, reason string, actor string) error {
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	if _, err := c.Buys.SetApprovalState(ctx, mediaBuyID, entities.ApprovalStateRejected, now); err != nil {
		if errors.Is(err, domainerrors.ErrMediaBuyNotFound) {
			return nil
		}
		return err
	}
	_, err := c.Fail.Execute(ctx, commands.FailMediaBuyCommand{
		MediaBuyID:    mediaBuyID,
		FailureReason: entities.FailureReasonTaskRejected,
		Actor:         actor,
		Reason:        reason,
	})
	if errors.Is(err, domainerrors.ErrStaleTransition) {
		return nil
	}
	return err
}

func (c TaskResolvedConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
