package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	domainerrors "adbroker/contexts/media-buying/context-service/domain/errors"
	"adbroker/contexts/media-buying/context-service/ports"
)

// Service is the context store's application surface. Sequence assignment
// lives in the repository, under the context row's lock, so two concurrent
// appends to the same context serialize there and never observe the same
// number.
type Service struct {
	Repo   ports.Repository
	Clock  ports.Clock
	Logger *slog.Logger
}

// Append adds one message to a context, opening the context first when no
// id is supplied. Returns the context id and the assigned sequence number.
func (s Service) Append(ctx context.Context, input ports.AppendInput) (ports.Context, ports.Message, error) {
	if strings.TrimSpace(input.TenantID) == "" ||
		strings.TrimSpace(input.PrincipalID) == "" ||
		len(input.Payload) == 0 {
		return ports.Context{}, ports.Message{}, domainerrors.ErrInvalidRequest
	}
	switch input.Direction {
	case ports.DirectionInbound, ports.DirectionOutbound:
	default:
		return ports.Context{}, ports.Message{}, domainerrors.ErrInvalidRequest
	}

	session, message, err := s.Repo.AppendMessage(ctx, ports.AppendInput{
		ContextID:   strings.TrimSpace(input.ContextID),
		TenantID:    strings.TrimSpace(input.TenantID),
		PrincipalID: strings.TrimSpace(input.PrincipalID),
		Direction:   input.Direction,
		Payload:     input.Payload,
	}, s.now())
	if err != nil {
		return ports.Context{}, ports.Message{}, err
	}

	resolveLogger(s.Logger).Debug("context message appended",
		"event", "context_message_appended",
		"module", "media-buying/context-service",
		"layer", "application",
		"context_id", session.ContextID,
		"sequence_num", message.SequenceNum,
		"direction", string(message.Direction),
	)
	return session, message, nil
}

// Read returns the context and its messages in sequence order. The read is
// tenant-checked and read-your-writes: a sequence returned by Append is
// visible to the next Read.
func (s Service) Read(ctx context.Context, contextID string, tenantID string) (ports.Context, []ports.Message, error) {
	if strings.TrimSpace(contextID) == "" || strings.TrimSpace(tenantID) == "" {
		return ports.Context{}, nil, domainerrors.ErrInvalidRequest
	}
	session, err := s.Repo.GetContext(ctx, strings.TrimSpace(contextID), strings.TrimSpace(tenantID))
	if err != nil {
		return ports.Context{}, nil, err
	}
	messages, err := s.Repo.ListMessages(ctx, session.ContextID, session.TenantID)
	if err != nil {
		return ports.Context{}, nil, err
	}
	return session, messages, nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
