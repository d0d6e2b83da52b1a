package ports

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// Context is one conversational session between a buyer principal and the
// broker. Messages inside it are totally ordered by store-assigned sequence
// numbers.
type Context struct {
	ContextID      string
	TenantID       string
	PrincipalID    string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

type Message struct {
	ContextID   string
	SequenceNum int64
	PrincipalID string
	Direction   MessageDirection
	Payload     []byte
	CreatedAt   time.Time
}

type AppendInput struct {
	ContextID   string
	TenantID    string
	PrincipalID string
	Direction   MessageDirection
	Payload     []byte
}

// Repository assigns sequence numbers under the context row's lock:
// strictly increasing, gap-free, never reused. AppendMessage with an empty
// ContextID opens a new context.
type Repository interface {
	AppendMessage(ctx context.Context, input AppendInput, now time.Time) (Context, Message, error)
	GetContext(ctx context.Context, contextID string, tenantID string) (Context, error)
	ListMessages(ctx context.Context, contextID string, tenantID string) ([]Message, error)
}
