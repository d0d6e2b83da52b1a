package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	"adbroker/contexts/media-buying/mediabuy-service/domain/services"
	"adbroker/contexts/media-buying/mediabuy-service/ports"

	"github.com/google/uuid"
)

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRow struct {
	payloadHash string
	expiresAt   time.Time
}

type Store struct {
	mu sync.RWMutex

	buys      map[string]entities.MediaBuy
	packages  map[string][]entities.Package
	creatives map[string][]entities.CreativeAsset
	audit     map[string][]entities.AuditEntry
	outbox    []outboxRow
	dedup     map[string]dedupRow
}

func NewStore(seed []entities.MediaBuy) *Store {
	buys := make(map[string]entities.MediaBuy, len(seed))
	for _, item := range seed {
		buys[item.MediaBuyID] = item
	}
	return &Store{
		buys:      buys,
		packages:  make(map[string][]entities.Package),
		creatives: make(map[string][]entities.CreativeAsset),
		audit:     make(map[string][]entities.AuditEntry),
		outbox:    make([]outboxRow, 0),
		dedup:     make(map[string]dedupRow),
	}
}

func (s *Store) CreateMediaBuy(_ context.Context, buy entities.MediaBuy, packages []entities.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.buys[buy.MediaBuyID]; exists {
		return domainerrors.ErrInvalidBuyInput
	}
	s.buys[buy.MediaBuyID] = buy
	s.packages[buy.MediaBuyID] = append([]entities.Package(nil), packages...)
	return nil
}

func (s *Store) GetMediaBuy(_ context.Context, mediaBuyID string) (entities.MediaBuy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.buys[strings.TrimSpace(mediaBuyID)]
	if !exists {
		return entities.MediaBuy{}, domainerrors.ErrMediaBuyNotFound
	}
	return item, nil
}

func (s *Store) ListMediaBuys(_ context.Context, filter ports.BuyFilter) ([]entities.MediaBuy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.MediaBuy, 0, len(s.buys))
	for _, buy := range s.buys {
		if strings.TrimSpace(filter.TenantID) != "" && buy.TenantID != strings.TrimSpace(filter.TenantID) {
			continue
		}
		if filter.Status != "" && buy.Status != filter.Status {
			continue
		}
		items = append(items, buy)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ListPackages(_ context.Context, mediaBuyID string) ([]entities.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]entities.Package(nil), s.packages[strings.TrimSpace(mediaBuyID)]...), nil
}

func (s *Store) GetPackage(_ context.Context, mediaBuyID string, packageID string) (entities.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pkg := range s.packages[strings.TrimSpace(mediaBuyID)] {
		if pkg.PackageID == strings.TrimSpace(packageID) {
			return pkg, nil
		}
	}
	return entities.Package{}, domainerrors.ErrPackageNotFound
}

func (s *Store) ListCreatives(_ context.Context, mediaBuyID string) ([]entities.CreativeAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]entities.CreativeAsset(nil), s.creatives[strings.TrimSpace(mediaBuyID)]...), nil
}

func (s *Store) AttachCreative(_ context.Context, asset entities.CreativeAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.buys[asset.MediaBuyID]; !exists {
		return domainerrors.ErrMediaBuyNotFound
	}
	s.creatives[asset.MediaBuyID] = append(s.creatives[asset.MediaBuyID], asset)
	return nil
}

func (s *Store) TransitionStatus(_ context.Context, mediaBuyID string, transition ports.Transition) (entities.MediaBuy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buy, exists := s.buys[strings.TrimSpace(mediaBuyID)]
	if !exists {
		return entities.MediaBuy{}, domainerrors.ErrMediaBuyNotFound
	}
	if buy.Status != transition.From {
		return entities.MediaBuy{}, domainerrors.ErrStaleTransition
	}
	if !services.CanTransition(transition.From, transition.To) {
		return entities.MediaBuy{}, domainerrors.ErrStaleTransition
	}

	at := transition.At.UTC()
	buy.Status = transition.To
	buy.UpdatedAt = at
	if transition.Patch.FailureReason != nil {
		buy.FailureReason = *transition.Patch.FailureReason
	}
	if transition.Patch.ApprovalState != nil {
		buy.ApprovalState = *transition.Patch.ApprovalState
	}
	if transition.Patch.BackendOrderID != nil {
		buy.BackendOrderID = *transition.Patch.BackendOrderID
	}
	if transition.Patch.ActivatedAt != nil {
		activatedAt := transition.Patch.ActivatedAt.UTC()
		buy.ActivatedAt = &activatedAt
	}
	if transition.Patch.CompletedAt != nil {
		completedAt := transition.Patch.CompletedAt.UTC()
		buy.CompletedAt = &completedAt
	}
	s.buys[buy.MediaBuyID] = buy

	s.audit[buy.MediaBuyID] = append(s.audit[buy.MediaBuyID], entities.AuditEntry{
		AuditID:    uuid.NewString(),
		MediaBuyID: buy.MediaBuyID,
		FromStatus: transition.From,
		ToStatus:   transition.To,
		Actor:      transition.Actor,
		Reason:     transition.Reason,
		CreatedAt:  at,
	})
	return buy, nil
}

func (s *Store) SetApprovalState(_ context.Context, mediaBuyID string, state entities.ApprovalState, at time.Time) (entities.MediaBuy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buy, exists := s.buys[strings.TrimSpace(mediaBuyID)]
	if !exists {
		return entities.MediaBuy{}, domainerrors.ErrMediaBuyNotFound
	}
	buy.ApprovalState = state
	buy.UpdatedAt = at.UTC()
	s.buys[buy.MediaBuyID] = buy
	return buy, nil
}

func (s *Store) ListAudit(_ context.Context, mediaBuyID string) ([]entities.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]entities.AuditEntry(nil), s.audit[strings.TrimSpace(mediaBuyID)]...), nil
}

func (s *Store) ListFlightEnded(_ context.Context, now time.Time, limit int) ([]entities.MediaBuy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]entities.MediaBuy, 0)
	for _, buy := range s.buys {
		if buy.Terminal() || !buy.FlightEnded(now) {
			continue
		}
		items = append(items, buy)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].FlightEnd.Before(items[j].FlightEnd)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
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
	return domainerrors.ErrMediaBuyNotFound
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.dedup[eventID]
	if exists && existing.payloadHash == payloadHash && existing.expiresAt.After(time.Now().UTC()) {
		return true, nil
	}
	s.dedup[eventID] = dedupRow{payloadHash: payloadHash, expiresAt: expiresAt.UTC()}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
