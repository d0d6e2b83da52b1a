package memory

import (
	"context"
	"sync"
	"time"

	domainerrors "adbroker/contexts/media-buying/context-service/domain/errors"
	"adbroker/contexts/media-buying/context-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	contexts map[string]ports.Context
	messages map[string][]ports.Message
}

func NewStore() *Store {
	return &Store{
		contexts: make(map[string]ports.Context),
		messages: make(map[string][]ports.Message),
	}
}

func (s *Store) AppendMessage(_ context.Context, input ports.AppendInput, now time.Time) (ports.Context, ports.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := now.UTC()
	var session ports.Context
	if input.ContextID == "" {
		session = ports.Context{
			ContextID:      uuid.NewString(),
			TenantID:       input.TenantID,
			PrincipalID:    input.PrincipalID,
			CreatedAt:      timestamp,
			LastActivityAt: timestamp,
		}
	} else {
		existing, exists := s.contexts[input.ContextID]
		if !exists || existing.TenantID != input.TenantID {
			return ports.Context{}, ports.Message{}, domainerrors.ErrContextNotFound
		}
		session = existing
		session.LastActivityAt = timestamp
	}

	message := ports.Message{
		ContextID:   session.ContextID,
		SequenceNum: int64(len(s.messages[session.ContextID])) + 1,
		PrincipalID: input.PrincipalID,
		Direction:   input.Direction,
		Payload:     append([]byte(nil), input.Payload...),
		CreatedAt:   timestamp,
	}
	s.contexts[session.ContextID] = session
	s.messages[session.ContextID] = append(s.messages[session.ContextID], message)
	return session, message, nil
}

func (s *Store) GetContext(_ context.Context, contextID string, tenantID string) (ports.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.contexts[contextID]
	if !exists || session.TenantID != tenantID {
		return ports.Context{}, domainerrors.ErrContextNotFound
	}
	return session, nil
}

func (s *Store) ListMessages(_ context.Context, contextID string, tenantID string) ([]ports.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.contexts[contextID]
	if !exists || session.TenantID != tenantID {
		return nil, domainerrors.ErrContextNotFound
	}
	return append([]ports.Message(nil), s.messages[contextID]...), nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
