package commands

import (
	"context"
	"log/slog"
	"strings"

	application "adbroker/contexts/media-buying/mediabuy-service/application"
	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

type FailMediaBuyCommand struct {
	MediaBuyID    string
	FailureReason string
	Actor         string
	Reason        string
}

// FailMediaBuyUseCase moves a non-terminal buy to failed with its coded
// reason. Used by the event consumers and the flight sweeper; the guard on
// the current status makes concurrent failure attempts collapse to one.
type FailMediaBuyUseCase struct {
	Buys   ports.MediaBuyRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc FailMediaBuyUseCase) Execute(ctx context.Context, cmd FailMediaBuyCommand) (entities.MediaBuy, error) {
	logger := application.ResolveLogger(uc.Logger)
	id := strings.TrimSpace(cmd.MediaBuyID)
	if id == "" || strings.TrimSpace(cmd.FailureReason) == "" {
		return entities.MediaBuy{}, domainerrors.ErrInvalidBuyInput
	}

	buy, err := uc.Buys.GetMediaBuy(ctx, id)
	if err != nil {
		return entities.MediaBuy{}, err
	}
	if buy.Terminal() {
		return entities.MediaBuy{}, domainerrors.ErrStaleTransition
	}

	now := uc.Clock.Now().UTC()
	failureReason := strings.TrimSpace(cmd.FailureReason)
	auditReason := strings.TrimSpace(cmd.Reason)
	if auditReason == "" {
		auditReason = failureReason
	}
	updated, err := uc.Buys.TransitionStatus(ctx, id, ports.Transition{
		From:   buy.Status,
		To:     entities.BuyStatusFailed,
		Actor:  strings.TrimSpace(cmd.Actor),
		Reason: auditReason,
		At:     now,
		Patch: ports.TransitionPatch{
			FailureReason: &failureReason,
		},
	})
	if err != nil {
		return entities.MediaBuy{}, err
	}

	if uc.Outbox != nil {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.MediaBuy{}, err
		}
		envelope, err := StatusChangedEnvelope(eventID, updated, buy.Status, now)
		if err != nil {
			return entities.MediaBuy{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return entities.MediaBuy{}, err
		}
	}

	logger.Info("media buy failed",
		"event", "media_buy_failed",
		"module", "media-buying/mediabuy-service",
		"layer", "application",
		"media_buy_id", updated.MediaBuyID,
		"failure_reason", failureReason,
	)
	return updated, nil
}
