package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	application "adbroker/contexts/media-buying/signal-service/application"
	"adbroker/contexts/media-buying/signal-service/application/commands"
	"adbroker/contexts/media-buying/signal-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/signal-service/domain/errors"
	"adbroker/contexts/media-buying/signal-service/ports"
)

// PollReconciler drives the pull half of the activation lifecycle. Each tick
// lists due pending activations and queries the backend for each one on a
// bounded worker pool. Every write goes through a poll-count CAS, so a tick
// that races a webhook (or another tick) drops its stale observation instead
// of double-consuming an attempt.
type PollReconciler struct {
	Activations    ports.ActivationRepository
	Gateway        ports.AdapterGateway
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Workers        int
	BatchSize      int
	AdapterTimeout time.Duration
	Disabled       bool
	Logger         *slog.Logger
}

func (w PollReconciler) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	if w.Disabled {
		logger.Info("signal polling disabled by feature flag",
			"event", "signal_polling_disabled",
			"module", "media-buying/signal-service",
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

	due, err := w.Activations.ListDuePending(ctx, now, limit)
	if err != nil {
		logger.Error("signal poll listing failed",
			"event", "signal_poll_list_failed",
			"module", "media-buying/signal-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(due) == 0 {
		return nil
	}

	workers := w.Workers
	if workers <= 0 {
		workers = 4
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, activation := range due {
		activation := activation
		group.Go(func() error {
			if err := w.pollOne(groupCtx, activation, now); err != nil {
				logger.Error("signal poll failed",
					"event", "signal_poll_failed",
					"module", "media-buying/signal-service",
					"layer", "worker",
					"activation_id", activation.ActivationID,
					"media_buy_id", activation.MediaBuyID,
					"error", err.Error(),
				)
			}
			// Per-activation failures never abort the sweep.
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info("signal poll cycle completed",
		"event", "signal_poll_completed",
		"module", "media-buying/signal-service",
		"layer", "worker",
		"polled_count", len(due),
	)
	return nil
}

func (w PollReconciler) pollOne(ctx context.Context, activation entities.SignalActivation, now time.Time) error {
	queryCtx := ctx
	if w.AdapterTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, w.AdapterTimeout)
		defer cancel()
	}

	result, err := w.Gateway.QueryActivationStatus(queryCtx, activation)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAdapterTransient) ||
			errors.Is(err, context.DeadlineExceeded) {
			return w.recordTransient(ctx, activation, now)
		}
		return err
	}

	switch result.Status {
	case entities.ActivationStatusActivated, entities.ActivationStatusFailed:
		return w.applyTerminal(ctx, activation, result, now)
	default:
		return w.applyStillPending(ctx, activation, now)
	}
}

// recordTransient bumps the consecutive error counter without spending a
// poll attempt; once the budget is gone the activation fails for good.
func (w PollReconciler) recordTransient(ctx context.Context, activation entities.SignalActivation, now time.Time) error {
	updated, err := w.Activations.ApplyTransientError(ctx, activation.ActivationID, now)
	if err != nil {
		if errors.Is(err, domainerrors.ErrActivationTerminal) {
			return nil
		}
		return err
	}
	if updated.TransientErrors < entities.DefaultMaxTransientErrors {
		return nil
	}

	failed, err := w.Activations.FailActivation(ctx, activation.ActivationID, entities.FailureReasonTransientErrors, now)
	if err != nil {
		if errors.Is(err, domainerrors.ErrActivationTerminal) {
			return nil
		}
		return err
	}
	return w.appendTerminalEvent(ctx, failed, now)
}

func (w PollReconciler) applyTerminal(ctx context.Context, activation entities.SignalActivation, result ports.ActivationStatusResult, now time.Time) error {
	reason := result.Reason
	if result.Status == entities.ActivationStatusFailed && reason == "" {
		reason = entities.FailureReasonBackendRejected
	}
	updated, err := w.Activations.ApplyPollResult(ctx, activation.ActivationID, activation.PollCount, ports.PollResult{
		Status:   result.Status,
		Reason:   reason,
		PolledAt: now,
	})
	if err != nil {
		// A conflict means a webhook or a competing tick already advanced the
		// row; that writer owns the terminal event.
		if errors.Is(err, domainerrors.ErrPollCountConflict) ||
			errors.Is(err, domainerrors.ErrActivationTerminal) {
			return nil
		}
		return err
	}
	return w.appendTerminalEvent(ctx, updated, now)
}

func (w PollReconciler) applyStillPending(ctx context.Context, activation entities.SignalActivation, now time.Time) error {
	// This attempt is the last one the budget allows: exhaust instead of
	// rescheduling.
	if activation.PollCount+1 >= activation.MaxPollAttempts {
		updated, err := w.Activations.ApplyPollResult(ctx, activation.ActivationID, activation.PollCount, ports.PollResult{
			Status:   entities.ActivationStatusFailed,
			Reason:   entities.FailureReasonPollExhausted,
			PolledAt: now,
		})
		if err != nil {
			if errors.Is(err, domainerrors.ErrPollCountConflict) ||
				errors.Is(err, domainerrors.ErrActivationTerminal) {
				return nil
			}
			return err
		}
		return w.appendTerminalEvent(ctx, updated, now)
	}

	_, err := w.Activations.ApplyPollResult(ctx, activation.ActivationID, activation.PollCount, ports.PollResult{
		Status:     entities.ActivationStatusPending,
		PolledAt:   now,
		NextPollAt: now.Add(activation.PollInterval()),
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrPollCountConflict) ||
			errors.Is(err, domainerrors.ErrActivationTerminal) {
			return nil
		}
		return err
	}
	return nil
}

func (w PollReconciler) appendTerminalEvent(ctx context.Context, activation entities.SignalActivation, now time.Time) error {
	if w.Outbox == nil {
		return nil
	}
	eventID, err := w.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := commands.ActivationEnvelope(eventID, activation, now)
	if err != nil {
		return err
	}
	return w.Outbox.AppendOutbox(ctx, envelope)
}
