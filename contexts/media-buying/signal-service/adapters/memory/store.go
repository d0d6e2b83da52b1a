package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"adbroker/contexts/media-buying/signal-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/signal-service/domain/errors"
	"adbroker/contexts/media-buying/signal-service/domain/services"
	"adbroker/contexts/media-buying/signal-service/ports"

	"github.com/google/uuid"
)

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

type Store struct {
	mu sync.RWMutex

	activations map[string]entities.SignalActivation
	outbox      []outboxRow
}

func NewStore(seed []entities.SignalActivation) *Store {
	activations := make(map[string]entities.SignalActivation, len(seed))
	for _, item := range seed {
		activations[item.ActivationID] = item
	}
	return &Store{
		activations: activations,
		outbox:      make([]outboxRow, 0),
	}
}

func (s *Store) CreateActivation(_ context.Context, activation entities.SignalActivation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.activations[activation.ActivationID]; exists {
		return domainerrors.ErrInvalidActivationInput
	}
	for _, existing := range s.activations {
		if existing.MediaBuyID == activation.MediaBuyID && existing.PackageID == activation.PackageID {
			return domainerrors.ErrInvalidActivationInput
		}
	}
	s.activations[activation.ActivationID] = activation
	return nil
}

func (s *Store) GetActivation(_ context.Context, activationID string) (entities.SignalActivation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.activations[strings.TrimSpace(activationID)]
	if !exists {
		return entities.SignalActivation{}, domainerrors.ErrActivationNotFound
	}
	return item, nil
}

func (s *Store) FindByPackage(_ context.Context, mediaBuyID string, packageID string) (entities.SignalActivation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.activations {
		if item.MediaBuyID == strings.TrimSpace(mediaBuyID) && item.PackageID == strings.TrimSpace(packageID) {
			return item, true, nil
		}
	}
	return entities.SignalActivation{}, false, nil
}

func (s *Store) ListByMediaBuy(_ context.Context, mediaBuyID string) ([]entities.SignalActivation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.SignalActivation, 0)
	for _, item := range s.activations {
		if item.MediaBuyID == strings.TrimSpace(mediaBuyID) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ListDuePending(_ context.Context, now time.Time, limit int) ([]entities.SignalActivation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	due := make([]entities.SignalActivation, 0)
	for _, item := range s.activations {
		if item.PollDue(now) {
			due = append(due, item)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextPollAt.Before(*due[j].NextPollAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) ApplyPollResult(_ context.Context, activationID string, expectedPollCount int, result ports.PollResult) (entities.SignalActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.activations[strings.TrimSpace(activationID)]
	if !exists {
		return entities.SignalActivation{}, domainerrors.ErrActivationNotFound
	}
	if current.Terminal() {
		return entities.SignalActivation{}, domainerrors.ErrActivationTerminal
	}
	if current.WebhookReceived || current.PollCount != expectedPollCount {
		return entities.SignalActivation{}, domainerrors.ErrPollCountConflict
	}

	merged, applied := services.Merge(current, services.Outcome{
		Source:     services.OutcomeSourcePoll,
		Status:     result.Status,
		Reason:     result.Reason,
		ObservedAt: result.PolledAt,
	})
	if !applied {
		return entities.SignalActivation{}, domainerrors.ErrPollCountConflict
	}

	merged.PollCount++
	merged.TransientErrors = 0
	if merged.Status == entities.ActivationStatusPending {
		nextPoll := result.NextPollAt.UTC()
		merged.NextPollAt = &nextPoll
	}
	s.activations[merged.ActivationID] = merged
	return merged, nil
}

func (s *Store) ApplyTransientError(_ context.Context, activationID string, observedAt time.Time) (entities.SignalActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.activations[strings.TrimSpace(activationID)]
	if !exists {
		return entities.SignalActivation{}, domainerrors.ErrActivationNotFound
	}
	if current.Terminal() || current.WebhookReceived {
		return entities.SignalActivation{}, domainerrors.ErrActivationTerminal
	}

	current.TransientErrors++
	current.UpdatedAt = observedAt.UTC()
	s.activations[current.ActivationID] = current
	return current, nil
}

func (s *Store) ApplyWebhookResult(_ context.Context, activationID string, result ports.WebhookResult) (entities.SignalActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.activations[strings.TrimSpace(activationID)]
	if !exists {
		return entities.SignalActivation{}, domainerrors.ErrActivationNotFound
	}

	merged, applied := services.Merge(current, services.Outcome{
		Source:     services.OutcomeSourceWebhook,
		Status:     result.Status,
		Reason:     result.Reason,
		ObservedAt: result.ReceivedAt,
	})
	if !applied {
		return entities.SignalActivation{}, domainerrors.ErrActivationTerminal
	}
	s.activations[merged.ActivationID] = merged
	return merged, nil
}

func (s *Store) FailActivation(_ context.Context, activationID string, reason string, now time.Time) (entities.SignalActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.activations[strings.TrimSpace(activationID)]
	if !exists {
		return entities.SignalActivation{}, domainerrors.ErrActivationNotFound
	}
	if current.Terminal() {
		return entities.SignalActivation{}, domainerrors.ErrActivationTerminal
	}

	current.Status = entities.ActivationStatusFailed
	current.FailureReason = reason
	current.NextPollAt = nil
	current.UpdatedAt = now.UTC()
	s.activations[current.ActivationID] = current
	return current, nil
}

func (s *Store) ExpirePendingByMediaBuy(_ context.Context, mediaBuyID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	timestamp := now.UTC()
	for id, item := range s.activations {
		if item.MediaBuyID != strings.TrimSpace(mediaBuyID) || item.Terminal() {
			continue
		}
		item.Status = entities.ActivationStatusExpired
		item.NextPollAt = nil
		item.UpdatedAt = timestamp
		s.activations[id] = item
		expired++
	}
	return expired, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.outbox = append(s.outbox, outboxRow{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			s.outbox[i].published = true
			return nil
		}
	}
	return domainerrors.ErrActivationNotFound
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
