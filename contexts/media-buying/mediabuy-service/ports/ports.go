package ports

import (
	"context"
	"time"

	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	contractsv1 "adbroker/contracts/gen/events/v1"
)

type BuyFilter struct {
	TenantID string
	Status   entities.BuyStatus
}

// Transition is one requested status change plus the audit fields written
// with it.
type Transition struct {
	From   entities.BuyStatus
	To     entities.BuyStatus
	Actor  string
	Reason string
	At     time.Time
	// Patch carries columns the transition also sets (failure_reason,
	// approval_state, backend_order_id, activated_at, completed_at).
	Patch TransitionPatch
}

type TransitionPatch struct {
	FailureReason  *string
	ApprovalState  *entities.ApprovalState
	BackendOrderID *string
	ActivatedAt    *time.Time
	CompletedAt    *time.Time
}

// MediaBuyRepository is the buy store. TransitionStatus is the single status
// write primitive: an UPDATE guarded on the old status plus the audit insert
// in one transaction. A lost race surfaces as ErrStaleTransition.
type MediaBuyRepository interface {
	CreateMediaBuy(ctx context.Context, buy entities.MediaBuy, packages []entities.Package) error
	GetMediaBuy(ctx context.Context, mediaBuyID string) (entities.MediaBuy, error)
	ListMediaBuys(ctx context.Context, filter BuyFilter) ([]entities.MediaBuy, error)
	ListPackages(ctx context.Context, mediaBuyID string) ([]entities.Package, error)
	ListCreatives(ctx context.Context, mediaBuyID string) ([]entities.CreativeAsset, error)
	AttachCreative(ctx context.Context, asset entities.CreativeAsset) error
	TransitionStatus(ctx context.Context, mediaBuyID string, transition Transition) (entities.MediaBuy, error)
	// SetApprovalState updates the cached approval gate without a status
	// change (manual-review task created, auto-approval).
	SetApprovalState(ctx context.Context, mediaBuyID string, state entities.ApprovalState, at time.Time) (entities.MediaBuy, error)
	ListAudit(ctx context.Context, mediaBuyID string) ([]entities.AuditEntry, error)
	// ListFlightEnded returns non-terminal buys whose flight_end passed.
	ListFlightEnded(ctx context.Context, now time.Time, limit int) ([]entities.MediaBuy, error)
	GetPackage(ctx context.Context, mediaBuyID string, packageID string) (entities.Package, error)
}

// AdapterGateway is the capability boundary to the backend ad server.
// Implementations wrap failures in ErrAdapterRetryable or ErrAdapterFatal
// and must honor ctx deadlines. ActivateOrder dedupes on the media buy id,
// so two racing activation attempts place at most one backend order.
type AdapterGateway interface {
	ActivateOrder(ctx context.Context, buy entities.MediaBuy, packages []entities.Package) (string, error)
	ReportDelivery(ctx context.Context, buy entities.MediaBuy, asOf time.Time) (entities.DeliveryReport, error)
}

// ApprovalQueue creates the human-review task gating a buy.
type ApprovalQueue interface {
	EnqueueApprovalTask(ctx context.Context, tenantID string, mediaBuyID string, dueDate time.Time) (string, error)
}

// SignalScheduler drives the signal-service from buy lifecycle events.
type SignalScheduler interface {
	ScheduleActivation(ctx context.Context, tenantID string, mediaBuyID string, packageID string, signalRef string) error
	ExpireActivations(ctx context.Context, mediaBuyID string) error
}

// ActivationStatusSource answers the activation gate check before go-live.
type ActivationStatusSource interface {
	AllActivated(ctx context.Context, mediaBuyID string) (bool, error)
}

// TenantPolicyProvider resolves whether a tenant's buys need manual review.
type TenantPolicyProvider interface {
	ApprovalMode(ctx context.Context, tenantID string) (ApprovalMode, error)
}

type ApprovalMode string

const (
	ApprovalModeAuto   ApprovalMode = "auto"
	ApprovalModeManual ApprovalMode = "manual"
)

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

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// EventDedupStore reserves an event id at most once per payload hash until
// the reservation expires; true means the event was already processed.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}
