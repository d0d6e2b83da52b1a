package ports

import (
	"context"
	"time"

	"adbroker/contexts/media-buying/signal-service/domain/entities"
	contractsv1 "adbroker/contracts/gen/events/v1"
)

// ActivationStatusResult is the backend's answer to a status query.
// A non-terminal Status means "still pending, keep polling".
type ActivationStatusResult struct {
	Status entities.ActivationStatus
	Reason string
}

// AdapterGateway is the capability boundary to one ad-server backend.
// Implementations must honor ctx deadlines; transport failures are wrapped
// in domain/errors.ErrAdapterTransient so the reconciler can tell a broken
// call apart from a consumed poll attempt.
type AdapterGateway interface {
	QueryActivationStatus(ctx context.Context, activation entities.SignalActivation) (ActivationStatusResult, error)
}

// PollResult is one applied reconciler observation. Every applied result
// consumes exactly one poll attempt and resets the consecutive transient
// error counter.
type PollResult struct {
	Status     entities.ActivationStatus
	Reason     string
	PolledAt   time.Time
	NextPollAt time.Time
}

// WebhookResult is one applied push observation. Webhooks bypass the poll
// counter entirely and cancel the poll schedule.
type WebhookResult struct {
	Status     entities.ActivationStatus
	Reason     string
	ReceivedAt time.Time
}

// ActivationRepository is the CAS-guarded activation store. The Apply*
// methods are single atomic writes: they fail with ErrActivationTerminal or
// ErrPollCountConflict instead of overwriting a row another writer advanced.
type ActivationRepository interface {
	CreateActivation(ctx context.Context, activation entities.SignalActivation) error
	GetActivation(ctx context.Context, activationID string) (entities.SignalActivation, error)
	FindByPackage(ctx context.Context, mediaBuyID string, packageID string) (entities.SignalActivation, bool, error)
	ListByMediaBuy(ctx context.Context, mediaBuyID string) ([]entities.SignalActivation, error)
	// ListDuePending returns pending activations with next_poll_at <= now and
	// no webhook received, ordered by next_poll_at.
	ListDuePending(ctx context.Context, now time.Time, limit int) ([]entities.SignalActivation, error)
	// ApplyPollResult applies a poll observation iff the row is still pending,
	// webhook_received is false and poll_count equals expectedPollCount; the
	// write increments poll_count and zeroes transient_errors.
	ApplyPollResult(ctx context.Context, activationID string, expectedPollCount int, result PollResult) (entities.SignalActivation, error)
	// ApplyTransientError bumps the consecutive transient error counter
	// without consuming a poll attempt; guarded on pending + no webhook.
	ApplyTransientError(ctx context.Context, activationID string, observedAt time.Time) (entities.SignalActivation, error)
	// ApplyWebhookResult applies a push observation iff the row is not yet
	// terminal; it wins over any in-flight poll.
	ApplyWebhookResult(ctx context.Context, activationID string, result WebhookResult) (entities.SignalActivation, error)
	// FailActivation force-fails a pending activation (transient error budget
	// exhausted); guarded on pending.
	FailActivation(ctx context.Context, activationID string, reason string, now time.Time) (entities.SignalActivation, error)
	// ExpirePendingByMediaBuy expires every pending activation of a media buy
	// whose flight window closed; returns the number of rows expired.
	ExpirePendingByMediaBuy(ctx context.Context, mediaBuyID string, now time.Time) (int, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
