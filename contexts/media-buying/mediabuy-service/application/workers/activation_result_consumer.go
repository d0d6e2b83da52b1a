package workers

import (
	"context"
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
	activationActivatedTopic = "signal_activation.activated"
	activationFailedTopic    = "signal_activation.failed"

	defaultActivationConsumerGroup = "mediabuy-service-activation-result-cg"
)

// ActivationResultConsumer reacts to terminal signal activation outcomes:
// activated re-attempts go-live (the approval gate may still hold it back),
// failed fails the whole buy.
type ActivationResultConsumer struct {
	Subscriber    ports.EventSubscriber
	Activate      commands.ActivateMediaBuyUseCase
	Fail          commands.FailMediaBuyUseCase
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c ActivationResultConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("activation result consumer disabled by feature flag",
			"event", "mediabuy_activation_consumer_disabled",
			"module", "media-buying/mediabuy-service",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultActivationConsumerGroup
	}
	for _, topic := range []string{activationActivatedTopic, activationFailedTopic} {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handleActivationResult); err != nil {
			return err
		}
	}
	return nil
}

func (c ActivationResultConsumer) handleActivationResult(ctx context.Context, event ports.EventEnvelope) error {
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
		logger.Debug("activation result already processed",
			"event", "mediabuy_activation_result_replayed",
			"module", "media-buying/mediabuy-service",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		ActivationID string `json:"activation_id"`
		MediaBuyID   string `json:"media_buy_id"`
		Status       string `json:"status"`
		Reason       string `json:"reason"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode activation result payload: %w", err)
	}
	mediaBuyID := strings.TrimSpace(payload.MediaBuyID)
	if mediaBuyID == "" {
		return fmt.Errorf("activation result payload missing media_buy_id")
	}

	switch payload.Status {
	case "activated":
		_, err := c.Activate.Execute(ctx, commands.ActivateMediaBuyCommand{
			MediaBuyID: mediaBuyID,
			Actor:      "system",
		})
		if err != nil {
			if errors.Is(err, domainerrors.ErrAdapterRetryable) ||
				errors.Is(err, domainerrors.ErrSignalsNotReady) ||
				errors.Is(err, domainerrors.ErrNotApproved) ||
				errors.Is(err, domainerrors.ErrStaleTransition) ||
				errors.Is(err, domainerrors.ErrAdapterFatal) {
				return nil
			}
			return err
		}
		return nil
	case "failed":
		_, err := c.Fail.Execute(ctx, commands.FailMediaBuyCommand{
			MediaBuyID:    mediaBuyID,
			FailureReason: entities.FailureReasonActivationFailed,
			Actor:         "system",
			Reason:        payload.Reason,
		})
		if errors.Is(err, domainerrors.ErrStaleTransition) ||
			errors.Is(err, domainerrors.ErrMediaBuyNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown activation result status %q", payload.Status)
	}
}

func (c ActivationResultConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}
