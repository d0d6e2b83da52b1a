package services

import (
	"time"

	"adbroker/contexts/media-buying/signal-service/domain/entities"
)

type OutcomeSource string

const (
	OutcomeSourcePoll    OutcomeSource = "poll"
	OutcomeSourceWebhook OutcomeSource = "webhook"
)

// Outcome is one observed activation result, tagged with how it was learned.
type Outcome struct {
	Source     OutcomeSource
	Status     entities.ActivationStatus
	Reason     string
	ObservedAt time.Time
}

// Merge decides whether an outcome applies to the current record and returns
// the merged record. The rule set, in order:
//
//  1. terminal records never change (a late poll result after a webhook
//     already landed is discarded here);
//  2. a poll outcome loses to a received webhook flag, regardless of
//     arrival order on the wire;
//  3. a webhook outcome always applies to a pending record and marks the
//     record webhook-confirmed so the poll schedule stops.
//
// The postgres adapter encodes the same rules as UPDATE guards; this
// function is the reference the in-memory store and the tests share.
func Merge(current entities.SignalActivation, outcome Outcome) (entities.SignalActivation, bool) {
	if current.Terminal() {
		return current, false
	}
	if outcome.Source == OutcomeSourcePoll && current.WebhookReceived {
		return current, false
	}

	observedAt := outcome.ObservedAt.UTC()
	merged := current
	merged.UpdatedAt = observedAt

	if outcome.Source == OutcomeSourceWebhook {
		merged.WebhookReceived = true
		merged.LastWebhookAt = &observedAt
	} else {
		merged.LastPolledAt = &observedAt
	}

	switch outcome.Status {
	case entities.ActivationStatusActivated, entities.ActivationStatusFailed, entities.ActivationStatusExpired:
		merged.Status = outcome.Status
		merged.FailureReason = outcome.Reason
		merged.NextPollAt = nil
		return merged, true
	default:
		return merged, true
	}
}
