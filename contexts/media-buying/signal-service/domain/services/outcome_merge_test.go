package services

import (
	"testing"
	"time"

	"adbroker/contexts/media-buying/signal-service/domain/entities"
)

func pendingActivation() entities.SignalActivation {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	next := created.Add(30 * time.Minute)
	return entities.SignalActivation{
		ActivationID:        "act-1",
		TenantID:            "tenant-1",
		MediaBuyID:          "buy-1",
		PackageID:           "pkg-1",
		SignalRef:           "signal-1",
		Status:              entities.ActivationStatusPending,
		PollIntervalMinutes: 30,
		MaxPollAttempts:     288,
		NextPollAt:          &next,
		CreatedAt:           created,
		UpdatedAt:           created,
	}
}

func TestMergeWebhookAppliesToPendingAndStopsPolling(t *testing.T) {
	observed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	merged, applied := Merge(pendingActivation(), Outcome{
		Source:     OutcomeSourceWebhook,
		Status:     entities.ActivationStatusActivated,
		ObservedAt: observed,
	})
	if !applied {
		t.Fatalf("expected webhook outcome to apply")
	}
	if merged.Status != entities.ActivationStatusActivated {
		t.Fatalf("expected activated, got %s", merged.Status)
	}
	if !merged.WebhookReceived {
		t.Fatalf("expected webhook flag to be set")
	}
	if merged.NextPollAt != nil {
		t.Fatalf("expected poll schedule to stop after terminal webhook")
	}
}

func TestMergePollLosesToReceivedWebhook(t *testing.T) {
	current := pendingActivation()
	current.WebhookReceived = true

	_, applied := Merge(current, Outcome{
		Source:     OutcomeSourcePoll,
		Status:     entities.ActivationStatusFailed,
		Reason:     entities.FailureReasonBackendRejected,
		ObservedAt: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
	})
	if applied {
		t.Fatalf("expected poll outcome to be discarded after a webhook")
	}
}

func TestMergeTerminalRecordNeverChanges(t *testing.T) {
	current := pendingActivation()
	current.Status = entities.ActivationStatusActivated
	current.NextPollAt = nil

	merged, applied := Merge(current, Outcome{
		Source:     OutcomeSourceWebhook,
		Status:     entities.ActivationStatusFailed,
		Reason:     entities.FailureReasonBackendRejected,
		ObservedAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	})
	if applied {
		t.Fatalf("expected terminal record to be immutable")
	}
	if merged.Status != entities.ActivationStatusActivated {
		t.Fatalf("expected status to stay activated, got %s", merged.Status)
	}
}

func TestMergePendingPollKeepsRecordPending(t *testing.T) {
	observed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	merged, applied := Merge(pendingActivation(), Outcome{
		Source:     OutcomeSourcePoll,
		Status:     entities.ActivationStatusPending,
		ObservedAt: observed,
	})
	if !applied {
		t.Fatalf("expected pending poll outcome to apply")
	}
	if merged.Status != entities.ActivationStatusPending {
		t.Fatalf("expected status to stay pending, got %s", merged.Status)
	}
	if merged.LastPolledAt == nil || !merged.LastPolledAt.Equal(observed) {
		t.Fatalf("expected last polled timestamp to be recorded")
	}
	if merged.WebhookReceived {
		t.Fatalf("poll outcome must not set the webhook flag")
	}
}
