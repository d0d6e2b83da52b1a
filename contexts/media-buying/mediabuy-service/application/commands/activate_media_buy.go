package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "adbroker/contexts/media-buying/mediabuy-service/application"
	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

type ActivateMediaBuyCommand struct {
	MediaBuyID string
	Actor      string
}

type ActivateMediaBuyUseCase struct {
	Buys           ports.MediaBuyRepository
	Gateway        ports.AdapterGateway
	Activations    ports.ActivationStatusSource
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	AdapterTimeout time.Duration
	Logger         *slog.Logger
}

// Execute takes an approved buy live. Gate checks read committed state
// only: the approval gate must be approved and every scheduled signal
// activation must have reached activated. The backend call runs under a
// bounded timeout; a retryable failure leaves the buy where it is, a fatal
// one fails it atomically.
func (uc ActivateMediaBuyUseCase) Execute(ctx context.Context, cmd ActivateMediaBuyCommand) (entities.MediaBuy, error) {
	logger := application.ResolveLogger(uc.Logger)
	id := strings.TrimSpace(cmd.MediaBuyID)
	if id == "" {
		return entities.MediaBuy{}, domainerrors.ErrInvalidBuyInput
	}

	buy, err := uc.Buys.GetMediaBuy(ctx, id)
	if err != nil {
		return entities.MediaBuy{}, err
	}
	if buy.Status != entities.BuyStatusPendingApproval {
		return entities.MediaBuy{}, domainerrors.ErrStaleTransition
	}
	if buy.ApprovalState != entities.ApprovalStateApproved {
		return entities.MediaBuy{}, domainerrors.ErrNotApproved
	}
	if uc.Activations != nil {
		ready, err := uc.Activations.AllActivated(ctx, buy.MediaBuyID)
		if err != nil {
			return entities.MediaBuy{}, err
		}
		if !ready {
			return entities.MediaBuy{}, domainerrors.ErrSignalsNotReady
		}
	}

	packages, err := uc.Buys.ListPackages(ctx, buy.MediaBuyID)
	if err != nil {
		return entities.MediaBuy{}, err
	}

	now := uc.Clock.Now().UTC()
	// Two racing calls can both pass the gates and reach the backend; the
	// gateway dedupes the order on the media buy id and the status CAS
	// below admits a single transition.
	orderID, err := uc.activateOrder(ctx, buy, packages)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAdapterFatal) {
			return uc.failBuy(ctx, buy, entities.FailureReasonAdapterFatal, cmd.Actor, now)
		}
		return entities.MediaBuy{}, err
	}

	activatedAt := now
	updated, err := uc.Buys.TransitionStatus(ctx, buy.MediaBuyID, ports.Transition{
		From:   entities.BuyStatusPendingApproval,
		To:     entities.BuyStatusActive,
		Actor:  strings.TrimSpace(cmd.Actor),
		Reason: "activation_confirmed",
		At:     now,
		Patch: ports.TransitionPatch{
			BackendOrderID: &orderID,
			ActivatedAt:    &activatedAt,
		},
	})
	if err != nil {
		return entities.MediaBuy{}, err
	}
	if err := uc.appendStatusEvent(ctx, updated, entities.BuyStatusPendingApproval, now); err != nil {
		return entities.MediaBuy{}, err
	}

	logger.Info("media buy activated",
		"event", "media_buy_activated",
		"module", "media-buying/mediabuy-service",
		"layer", "application",
		"media_buy_id", updated.MediaBuyID,
		"backend_order_id", orderID,
	)
	return updated, nil
}

func (uc ActivateMediaBuyUseCase) activateOrder(ctx context.Context, buy entities.MediaBuy, packages []entities.Package) (string, error) {
	callCtx := ctx
	if uc.AdapterTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, uc.AdapterTimeout)
		defer cancel()
	}
	orderID, err := uc.Gateway.ActivateOrder(callCtx, buy, packages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domainerrors.ErrAdapterRetryable
		}
		return "", err
	}
	return orderID, nil
}

func (uc ActivateMediaBuyUseCase) failBuy(ctx context.Context, buy entities.MediaBuy, reason string, actor string, now time.Time) (entities.MediaBuy, error) {
	failed, err := uc.Buys.TransitionStatus(ctx, buy.MediaBuyID, ports.Transition{
		From:   buy.Status,
		To:     entities.BuyStatusFailed,
		Actor:  strings.TrimSpace(actor),
		Reason: reason,
		At:     now,
		Patch: ports.TransitionPatch{
			FailureReason: &reason,
		},
	})
	if err != nil {
		return entities.MediaBuy{}, err
	}
	if err := uc.appendStatusEvent(ctx, failed, buy.Status, now); err != nil {
		return entities.MediaBuy{}, err
	}
	return failed, domainerrors.ErrAdapterFatal
}

func (uc ActivateMediaBuyUseCase) appendStatusEvent(ctx context.Context, buy entities.MediaBuy, from entities.BuyStatus, now time.Time) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := StatusChangedEnvelope(eventID, buy, from, now)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
