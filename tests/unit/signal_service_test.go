package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	signalservice "adbroker/contexts/media-buying/signal-service"
	signalmemory "adbroker/contexts/media-buying/signal-service/adapters/memory"
	"adbroker/contexts/media-buying/signal-service/application/commands"
	"adbroker/contexts/media-buying/signal-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/signal-service/domain/errors"
	"adbroker/contexts/media-buying/signal-service/ports"
	httptransport "adbroker/contexts/media-buying/signal-service/transport/http"
)

func dueActivation(id string, pollCount int, maxAttempts int) entities.SignalActivation {
	created := time.Now().UTC().Add(-2 * time.Hour)
	next := time.Now().UTC().Add(-time.Minute)
	return entities.SignalActivation{
		ActivationID:        id,
		TenantID:            "tenant-1",
		MediaBuyID:          "buy-1",
		PackageID:           "pkg-" + id,
		SignalRef:           "signal-" + id,
		Status:              entities.ActivationStatusPending,
		PollIntervalMinutes: 30,
		PollCount:           pollCount,
		MaxPollAttempts:     maxAttempts,
		NextPollAt:          &next,
		CreatedAt:           created,
		UpdatedAt:           created,
	}
}

func TestScheduleActivationIsIdempotentPerPackage(t *testing.T) {
	module := signalservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	cmd := commands.ScheduleActivationCommand{
		TenantID:   "tenant-1",
		MediaBuyID: "buy-1",
		PackageID:  "pkg-1",
		SignalRef:  "signal-1",
	}

	first, err := module.ScheduleActivation.Execute(ctx, cmd)
	if err != nil {
		t.Fatalf("first schedule failed: %v", err)
	}
	if first.Status != entities.ActivationStatusPending {
		t.Fatalf("expected pending activation, got %s", first.Status)
	}
	if first.MaxPollAttempts != entities.DefaultMaxPollAttempts {
		t.Fatalf("expected default poll budget, got %d", first.MaxPollAttempts)
	}

	second, err := module.ScheduleActivation.Execute(ctx, cmd)
	if err != nil {
		t.Fatalf("second schedule failed: %v", err)
	}
	if second.ActivationID != first.ActivationID {
		t.Fatalf("expected re-run to return the existing activation, got %s and %s", first.ActivationID, second.ActivationID)
	}
}

func TestWebhookWinsOverLatePoll(t *testing.T) {
	module := signalservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()

	scheduled, err := module.ScheduleActivation.Execute(ctx, commands.ScheduleActivationCommand{
		TenantID:   "tenant-1",
		MediaBuyID: "buy-1",
		PackageID:  "pkg-1",
		SignalRef:  "signal-1",
	})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	resp, err := module.Handler.WebhookHandler(ctx, scheduled.ActivationID, httptransport.WebhookRequest{
		Result: "activated",
	})
	if err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if resp.Activation.Status != "activated" || !resp.Activation.WebhookReceived {
		t.Fatalf("expected activated via webhook, got %+v", resp.Activation)
	}

	// A poll that was in flight when the webhook landed loses its CAS.
	_, err = module.Store.ApplyPollResult(ctx, scheduled.ActivationID, 0, ports.PollResult{
		Status:   entities.ActivationStatusPending,
		PolledAt: time.Now().UTC(),
	})
	if !errors.Is(err, domainerrors.ErrActivationTerminal) && !errors.Is(err, domainerrors.ErrPollCountConflict) {
		t.Fatalf("expected late poll to be rejected, got %v", err)
	}

	// Terminal rows are immutable for later webhooks too.
	_, err = module.Handler.WebhookHandler(ctx, scheduled.ActivationID, httptransport.WebhookRequest{
		Result: "failed",
		Reason: "operator cancelled",
	})
	if !errors.Is(err, domainerrors.ErrActivationTerminal) {
		t.Fatalf("expected terminal conflict on repeated webhook, got %v", err)
	}

	outbox, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(outbox) != 1 || outbox[0].EventType != commands.EventActivationActivated {
		t.Fatalf("expected exactly one terminal event, got %+v", outbox)
	}
}

func TestPollReconcilerAppliesTerminalBackendAnswer(t *testing.T) {
	module := signalservice.NewInMemoryModule([]entities.SignalActivation{
		dueActivation("act-1", 3, 288),
	}, nil)
	ctx := context.Background()
	module.Gateway.Script("signal-act-1", signalmemory.ScriptedAnswer{
		Result: ports.ActivationStatusResult{Status: entities.ActivationStatusActivated},
	})

	if err := module.PollReconciler.RunOnce(ctx); err != nil {
		t.Fatalf("poll cycle failed: %v", err)
	}

	activation, err := module.Store.GetActivation(ctx, "act-1")
	if err != nil {
		t.Fatalf("get activation failed: %v", err)
	}
	if activation.Status != entities.ActivationStatusActivated {
		t.Fatalf("expected activated, got %s", activation.Status)
	}
	if activation.PollCount != 4 {
		t.Fatalf("expected poll attempt to be consumed, got count %d", activation.PollCount)
	}

	outbox, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(outbox) != 1 || outbox[0].EventType != commands.EventActivationActivated {
		t.Fatalf("expected one activated event, got %+v", outbox)
	}
}

func TestPollBudgetExhaustionFailsActivation(t *testing.T) {
	module := signalservice.NewInMemoryModule([]entities.SignalActivation{
		dueActivation("act-1", 287, 288),
	}, nil)
	ctx := context.Background()

	// No script: the backend keeps answering pending, and the attempt that
	// would exceed the budget fails the activation instead of rescheduling.
	if err := module.PollReconciler.RunOnce(ctx); err != nil {
		t.Fatalf("poll cycle failed: %v", err)
	}

	activation, err := module.Store.GetActivation(ctx, "act-1")
	if err != nil {
		t.Fatalf("get activation failed: %v", err)
	}
	if activation.Status != entities.ActivationStatusFailed {
		t.Fatalf("expected failed, got %s", activation.Status)
	}
	if activation.FailureReason != entities.FailureReasonPollExhausted {
		t.Fatalf("expected poll_exhausted, got %s", activation.FailureReason)
	}
	if activation.PollCount != 288 {
		t.Fatalf("expected final attempt recorded, got count %d", activation.PollCount)
	}

	// The terminal row drops out of the due set; another tick emits nothing.
	if err := module.PollReconciler.RunOnce(ctx); err != nil {
		t.Fatalf("second poll cycle failed: %v", err)
	}
	outbox, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(outbox) != 1 || outbox[0].EventType != commands.EventActivationFailed {
		t.Fatalf("expected one failed event, got %+v", outbox)
	}
}

func TestTransientErrorBudgetFailsActivation(t *testing.T) {
	module := signalservice.NewInMemoryModule([]entities.SignalActivation{
		dueActivation("act-1", 0, 288),
	}, nil)
	ctx := context.Background()
	module.Gateway.Script("signal-act-1",
		signalmemory.ScriptedAnswer{Transient: true},
		signalmemory.ScriptedAnswer{Transient: true},
		signalmemory.ScriptedAnswer{Transient: true},
		signalmemory.ScriptedAnswer{Transient: true},
		signalmemory.ScriptedAnswer{Transient: true},
	)

	// Transient answers do not consume poll attempts, so the row stays due
	// and each tick burns one unit of the consecutive-error budget.
	for i := 0; i < entities.DefaultMaxTransientErrors; i++ {
		if err := module.PollReconciler.RunOnce(ctx); err != nil {
			t.Fatalf("poll cycle %d failed: %v", i+1, err)
		}
	}

	activation, err := module.Store.GetActivation(ctx, "act-1")
	if err != nil {
		t.Fatalf("get activation failed: %v", err)
	}
	if activation.Status != entities.ActivationStatusFailed {
		t.Fatalf("expected failed after transient budget, got %s", activation.Status)
	}
	if activation.FailureReason != entities.FailureReasonTransientErrors {
		t.Fatalf("expected transient_errors, got %s", activation.FailureReason)
	}
	if activation.PollCount != 0 {
		t.Fatalf("transient answers must not consume attempts, got count %d", activation.PollCount)
	}
}

func TestExpireActivationsClosesPendingRows(t *testing.T) {
	module := signalservice.NewInMemoryModule([]entities.SignalActivation{
		dueActivation("act-1", 0, 288),
		dueActivation("act-2", 0, 288),
	}, nil)
	ctx := context.Background()

	count, err := module.ExpireActivations.Execute(ctx, "buy-1")
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected both pending rows expired, got %d", count)
	}

	activation, err := module.Store.GetActivation(ctx, "act-1")
	if err != nil {
		t.Fatalf("get activation failed: %v", err)
	}
	if activation.Status != entities.ActivationStatusExpired || activation.NextPollAt != nil {
		t.Fatalf("expected expired with no schedule, got %+v", activation)
	}
}
