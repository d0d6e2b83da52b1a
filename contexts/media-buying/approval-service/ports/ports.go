package ports

import (
	"context"
	"time"

	"adbroker/contexts/media-buying/approval-service/domain/entities"
	contractsv1 "adbroker/contracts/gen/events/v1"
)

type TaskFilter struct {
	TenantID string
	Status   entities.TaskStatus
}

// TaskResolution is the terminal state applied by a compare-and-swap write.
type TaskResolution struct {
	Status         entities.TaskStatus
	DecidedBy      string
	DecisionReason string
	DecidedAt      time.Time
}

// TaskRepository is the optimistically locked task store. ResolveTaskCAS and
// ExpireDueTasks must be single atomic writes guarded on the stored version;
// read-then-write sequences in application code are not acceptable.
type TaskRepository interface {
	CreateTask(ctx context.Context, task entities.Task) error
	GetTask(ctx context.Context, taskID string) (entities.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]entities.Task, error)
	// ResolveTaskCAS applies the resolution iff the stored version equals
	// expectedVersion, incrementing the version in the same write. A stale
	// version yields ErrVersionConflict; the caller must re-read and decide
	// again, the store never retries on its own.
	ResolveTaskCAS(ctx context.Context, taskID string, expectedVersion int, resolution TaskResolution) (entities.Task, error)
	// ExpireDueTasks transitions every pending task with due_date < now to
	// expired using the same per-row CAS discipline. Idempotent.
	ExpireDueTasks(ctx context.Context, now time.Time, limit int) ([]entities.Task, error)
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
