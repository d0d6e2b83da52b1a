package entities

import "time"

type ActivationStatus string

const (
	ActivationStatusPending   ActivationStatus = "pending"
	ActivationStatusActivated ActivationStatus = "activated"
	ActivationStatusFailed    ActivationStatus = "failed"
	ActivationStatusExpired   ActivationStatus = "expired"
)

const (
	FailureReasonPollExhausted   = "poll_exhausted"
	FailureReasonTransientErrors = "transient_errors"
	FailureReasonBackendRejected = "backend_rejected"
)

const (
	DefaultPollIntervalMinutes = 30
	DefaultMaxPollAttempts     = 288
	DefaultMaxTransientErrors  = 5
)

// SignalActivation tracks one asynchronous audience-signal activation on a
// backend ad server. The record is driven to a terminal state either by the
// poll reconciler or by a webhook; terminal rows are immutable.
type SignalActivation struct {
	ActivationID        string
	TenantID            string
	MediaBuyID          string
	PackageID           string
	SignalRef           string
	Status              ActivationStatus
	FailureReason       string
	PollIntervalMinutes int
	PollCount           int
	MaxPollAttempts     int
	TransientErrors     int
	NextPollAt          *time.Time
	WebhookReceived     bool
	LastWebhookAt       *time.Time
	LastPolledAt        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (a SignalActivation) Terminal() bool {
	switch a.Status {
	case ActivationStatusActivated, ActivationStatusFailed, ActivationStatusExpired:
		return true
	default:
		return false
	}
}

// PollDue reports whether the reconciler should query the backend for this
// activation. A received webhook is authoritative and cancels the schedule.
func (a SignalActivation) PollDue(now time.Time) bool {
	if a.Status != ActivationStatusPending || a.WebhookReceived || a.NextPollAt == nil {
		return false
	}
	return !a.NextPollAt.UTC().After(now.UTC())
}

func (a SignalActivation) PollInterval() time.Duration {
	minutes := a.PollIntervalMinutes
	if minutes <= 0 {
		minutes = DefaultPollIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}
