package commands

import (
	"context"
	"log/slog"
	"strings"

	application "adbroker/contexts/media-buying/signal-service/application"
	"adbroker/contexts/media-buying/signal-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/signal-service/domain/errors"
	"adbroker/contexts/media-buying/signal-service/ports"
)

type RecordWebhookCommand struct {
	ActivationID string
	Result       string
	Reason       string
}

type RecordWebhookUseCase struct {
	Activations ports.ActivationRepository
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

// Execute applies a pushed activation result. Push is trusted over pull:
// the store-level guard lets the webhook win even when a poll for the same
// row is in flight, and the late poll result is then discarded by its own
// compare-and-swap.
func (uc RecordWebhookUseCase) Execute(ctx context.Context, cmd RecordWebhookCommand) (entities.SignalActivation, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ActivationID) == "" {
		return entities.SignalActivation{}, domainerrors.ErrInvalidActivationInput
	}

	var status entities.ActivationStatus
	switch strings.TrimSpace(cmd.Result) {
	case string(entities.ActivationStatusActivated):
		status = entities.ActivationStatusActivated
	case string(entities.ActivationStatusFailed):
		status = entities.ActivationStatusFailed
	default:
		return entities.SignalActivation{}, domainerrors.ErrInvalidActivationInput
	}

	reason := strings.TrimSpace(cmd.Reason)
	if status == entities.ActivationStatusFailed && reason == "" {
		reason = entities.FailureReasonBackendRejected
	}

	now := uc.Clock.Now().UTC()
	activation, err := uc.Activations.ApplyWebhookResult(ctx, strings.TrimSpace(cmd.ActivationID), ports.WebhookResult{
		Status:     status,
		Reason:     reason,
		ReceivedAt: now,
	})
	if err != nil {
		return entities.SignalActivation{}, err
	}

	if uc.Outbox != nil && activation.Terminal() {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.SignalActivation{}, err
		}
		envelope, err := ActivationEnvelope(eventID, activation, now)
		if err != nil {
			return entities.SignalActivation{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return entities.SignalActivation{}, err
		}
	}

	logger.Info("signal activation webhook applied",
		"event", "signal_activation_webhook_applied",
		"module", "media-buying/signal-service",
		"layer", "application",
		"activation_id", activation.ActivationID,
		"media_buy_id", activation.MediaBuyID,
		"status", string(activation.Status),
		"reason", activation.FailureReason,
	)
	return activation, nil
}
