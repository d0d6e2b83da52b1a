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

type ChangeDeliveryCommand struct {
	MediaBuyID string
	Actor      string
	Reason     string
}

// PauseMediaBuyUseCase and ResumeMediaBuyUseCase are the only operator
// controls over active ⇄ paused; nothing automated takes these edges.
type PauseMediaBuyUseCase struct {
	Buys   ports.MediaBuyRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc PauseMediaBuyUseCase) Execute(ctx context.Context, cmd ChangeDeliveryCommand) (entities.MediaBuy, error) {
	return changeDelivery(ctx, deliveryChange{
		buys:   uc.Buys,
		outbox: uc.Outbox,
		clock:  uc.Clock,
		idGen:  uc.IDGen,
		logger: application.ResolveLogger(uc.Logger),
		from:   entities.BuyStatusActive,
		to:     entities.BuyStatusPaused,
		event:  "media_buy_paused",
	}, cmd)
}

type ResumeMediaBuyUseCase struct {
	Buys   ports.MediaBuyRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc ResumeMediaBuyUseCase) Execute(ctx context.Context, cmd ChangeDeliveryCommand) (entities.MediaBuy, error) {
	return changeDelivery(ctx, deliveryChange{
		buys:   uc.Buys,
		outbox: uc.Outbox,
		clock:  uc.Clock,
		idGen:  uc.IDGen,
		logger: application.ResolveLogger(uc.Logger),
		from:   entities.BuyStatusPaused,
		to:     entities.BuyStatusActive,
		event:  "media_buy_resumed",
	}, cmd)
}

type deliveryChange struct {
	buys   ports.MediaBuyRepository
	outbox ports.OutboxWriter
	clock  ports.Clock
	idGen  ports.IDGenerator
	logger *slog.Logger
	from   entities.BuyStatus
	to     entities.BuyStatus
	event  string
}

func changeDelivery(ctx context.Context, change deliveryChange, cmd ChangeDeliveryCommand) (entities.MediaBuy, error) {
	id := strings.TrimSpace(cmd.MediaBuyID)
	if id == "" {
		return entities.MediaBuy{}, domainerrors.ErrInvalidBuyInput
	}

	now := change.clock.Now().UTC()
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "operator_request"
	}
	updated, err := change.buys.TransitionStatus(ctx, id, ports.Transition{
		From:   change.from,
		To:     change.to,
		Actor:  strings.TrimSpace(cmd.Actor),
		Reason: reason,
		At:     now,
	})
	if err != nil {
		return entities.MediaBuy{}, err
	}

	if change.outbox != nil {
		eventID, err := change.idGen.NewID(ctx)
		if err != nil {
			return entities.MediaBuy{}, err
		}
		envelope, err := StatusChangedEnvelope(eventID, updated, change.from, now)
		if err != nil {
			return entities.MediaBuy{}, err
		}
		if err := change.outbox.AppendOutbox(ctx, envelope); err != nil {
			return entities.MediaBuy{}, err
		}
	}

	change.logger.Info("media buy delivery changed",
		"event", change.event,
		"module", "media-buying/mediabuy-service",
		"layer", "application",
		"media_buy_id", updated.MediaBuyID,
		"actor", strings.TrimSpace(cmd.Actor),
	)
	return updated, nil
}
