package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"adbroker/contexts/media-buying/approval-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/approval-service/domain/errors"
	"adbroker/contexts/media-buying/approval-service/ports"

	"github.com/google/uuid"
)

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

type Store struct {
	mu sync.RWMutex

	tasks  map[string]entities.Task
	outbox []outboxRow
}

func NewStore(seed []entities.Task) *Store {
	tasks := make(map[string]entities.Task, len(seed))
	for _, item := range seed {
		tasks[item.TaskID] = item
	}
	return &Store{
		tasks:  tasks,
		outbox: make([]outboxRow, 0),
	}
}

func (s *Store) CreateTask(_ context.Context, task entities.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.TaskID]; exists {
		return domainerrors.ErrInvalidTaskInput
	}
	s.tasks[task.TaskID] = task
	return nil
}

func (s *Store) GetTask(_ context.Context, taskID string) (entities.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.tasks[strings.TrimSpace(taskID)]
	if !exists {
		return entities.Task{}, domainerrors.ErrTaskNotFound
	}
	return item, nil
}

func (s *Store) ListTasks(_ context.Context, filter ports.TaskFilter) ([]entities.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if strings.TrimSpace(filter.TenantID) != "" && task.TenantID != strings.TrimSpace(filter.TenantID) {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		items = append(items, task)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ResolveTaskCAS(_ context.Context, taskID string, expectedVersion int, resolution ports.TaskResolution) (entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[strings.TrimSpace(taskID)]
	if !exists {
		return entities.Task{}, domainerrors.ErrTaskNotFound
	}
	if task.Status != entities.TaskStatusPending {
		return entities.Task{}, domainerrors.ErrTaskTerminal
	}
	if task.Version != expectedVersion {
		return entities.Task{}, domainerrors.ErrVersionConflict
	}

	decidedAt := resolution.DecidedAt.UTC()
	task.Status = resolution.Status
	task.Version++
	task.DecidedBy = resolution.DecidedBy
	task.DecisionReason = resolution.DecisionReason
	task.DecidedAt = &decidedAt
	task.UpdatedAt = decidedAt
	s.tasks[task.TaskID] = task
	return task, nil
}

func (s *Store) ExpireDueTasks(_ context.Context, now time.Time, limit int) ([]entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	due := make([]entities.Task, 0)
	for _, task := range s.tasks {
		if task.Overdue(now) {
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].DueDate.Before(due[j].DueDate)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	expired := make([]entities.Task, 0, len(due))
	timestamp := now.UTC()
	for _, task := range due {
		task.Status = entities.TaskStatusExpired
		task.Version++
		task.DecidedBy = "system"
		task.DecisionReason = "due_date_passed"
		task.DecidedAt = &timestamp
		task.UpdatedAt = timestamp
		s.tasks[task.TaskID] = task
		expired = append(expired, task)
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
	return domainerrors.ErrTaskNotFound
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
