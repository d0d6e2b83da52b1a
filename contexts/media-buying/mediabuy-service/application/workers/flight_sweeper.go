package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "adbroker/contexts/media-buying/mediabuy-service/application"
	"adbroker/contexts/media-buying/mediabuy-service/application/commands"
	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

// FlightSweeper closes out buys whose flight window ended. A delivering buy
// completes; anything else fails with flight_expired_unfulfilled. Pending
// signal activations of a swept buy are expired so the reconciler stops
// polling for them.
type FlightSweeper struct {
	Buys           ports.MediaBuyRepository
	Gateway        ports.AdapterGateway
	Signals        ports.SignalScheduler
	Fail           commands.FailMediaBuyUseCase
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	BatchSize      int
	AdapterTimeout time.Duration
	Disabled       bool
	Logger         *slog.Logger
}

func (w FlightSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	if w.Disabled {
		logger.Info("flight sweep disabled by feature flag",
			"event", "mediabuy_flight_sweep_disabled",
			"module", "media-buying/mediabuy-service",
			"layer", "worker",
		)
		return nil
	}
	now := time.Now().UTC()
	if w.Clock != nil {
		now = w.Clock.Now().UTC()
	}
	limit := w.BatchSize
	if limit <= 0 {
		limit = 100
	}

	ended, err := w.Buys.ListFlightEnded(ctx, now, limit)
	if err != nil {
		logger.Error("flight sweep listing failed",
			"event", "mediabuy_flight_sweep_list_failed",
			"module", "media-buying/mediabuy-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, buy := range ended {
		if err := w.sweepOne(ctx, buy, now); err != nil {
			logger.Error("flight sweep failed for media buy",
				"event", "mediabuy_flight_sweep_failed",
				"module", "media-buying/mediabuy-service",
				"layer", "worker",
				"media_buy_id", buy.MediaBuyID,
				"error", err.Error(),
			)
			// Keep sweeping the rest of the batch.
		}
	}

	if len(ended) > 0 {
		logger.Info("flight sweep completed",
			"event", "mediabuy_flight_sweep_completed",
			"module", "media-buying/mediabuy-service",
			"layer", "worker",
			"swept_count", len(ended),
		)
	}
	return nil
}

func (w FlightSweeper) sweepOne(ctx context.Context, buy entities.MediaBuy, now time.Time) error {
	delivered := false
	if buy.Status == entities.BuyStatusActive || buy.Status == entities.BuyStatusPaused {
		report, err := w.reportDelivery(ctx, buy, now)
		if err == nil && report.Impressions > 0 {
			delivered = true
		}
		// A retryable reporting failure counts as undelivered this cycle; the
		// guard below keeps a later cycle from double-transitioning.
	}

	if delivered {
		completedAt := now
		updated, err := w.Buys.TransitionStatus(ctx, buy.MediaBuyID, ports.Transition{
			From:   buy.Status,
			To:     entities.BuyStatusCompleted,
			Actor:  "system",
			Reason: "flight_window_closed",
			At:     now,
			Patch: ports.TransitionPatch{
				CompletedAt: &completedAt,
			},
		})
		if err != nil {
			if errors.Is(err, domainerrors.ErrStaleTransition) {
				return nil
			}
			return err
		}
		if err := w.appendStatusEvent(ctx, updated, buy.Status, now); err != nil {
			return err
		}
	} else {
		_, err := w.Fail.Execute(ctx, commands.FailMediaBuyCommand{
			MediaBuyID:    buy.MediaBuyID,
			FailureReason: entities.FailureReasonFlightUnfulfilled,
			Actor:         "system",
			Reason:        "flight_window_closed",
		})
		if err != nil && !errors.Is(err, domainerrors.ErrStaleTransition) {
			return err
		}
	}

	if w.Signals != nil {
		if err := w.Signals.ExpireActivations(ctx, buy.MediaBuyID); err != nil {
			return err
		}
	}
	return nil
}

func (w FlightSweeper) reportDelivery(ctx context.Context, buy entities.MediaBuy, asOf time.Time) (entities.DeliveryReport, error) {
	callCtx := ctx
	if w.AdapterTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, w.AdapterTimeout)
		defer cancel()
	}
	return w.Gateway.ReportDelivery(callCtx, buy, asOf)
}

func (w FlightSweeper) appendStatusEvent(ctx context.Context, buy entities.MediaBuy, from entities.BuyStatus, now time.Time) error {
	if w.Outbox == nil {
		return nil
	}
	eventID, err := w.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := commands.StatusChangedEnvelope(eventID, buy, from, now)
	if err != nil {
		return err
	}
	return w.Outbox.AppendOutbox(ctx, envelope)
}
