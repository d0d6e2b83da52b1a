package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"adbroker/contexts/media-buying/approval-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/approval-service/domain/errors"
	"adbroker/contexts/media-buying/approval-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) CreateTask(ctx context.Context, task entities.Task) error {
	row := taskModelFromEntity(task)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidTaskInput
		}
		return err
	}
	return nil
}

func (r *Repository) GetTask(ctx context.Context, taskID string) (entities.Task, error) {
	var row taskModel
	err := r.db.WithContext(ctx).
		Where("task_id = ?", strings.TrimSpace(taskID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Task{}, domainerrors.ErrTaskNotFound
		}
		return entities.Task{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListTasks(ctx context.Context, filter ports.TaskFilter) ([]entities.Task, error) {
	tx := r.db.WithContext(ctx).Model(&taskModel{})
	if strings.TrimSpace(filter.TenantID) != "" {
		tx = tx.Where("tenant_id = ?", strings.TrimSpace(filter.TenantID))
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}

	var rows []taskModel
	if err := tx.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Task, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// ResolveTaskCAS is the single compare-and-swap write behind task
// resolution: the UPDATE is guarded on both the supplied version and the
// pending status, and increments the version in the same statement. Zero
// rows affected means someone else resolved or expired the task first.
func (r *Repository) ResolveTaskCAS(ctx context.Context, taskID string, expectedVersion int, resolution ports.TaskResolution) (entities.Task, error) {
	id := strings.TrimSpace(taskID)
	decidedAt := resolution.DecidedAt.UTC()

	result := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("task_id = ? AND version = ? AND status = ?", id, expectedVersion, string(entities.TaskStatusPending)).
		Updates(map[string]any{
			"status":          string(resolution.Status),
			"version":         gorm.Expr("version + 1"),
			"decided_by":      strings.TrimSpace(resolution.DecidedBy),
			"decision_reason": strings.TrimSpace(resolution.DecisionReason),
			"decided_at":      decidedAt,
			"updated_at":      decidedAt,
		})
	if result.Error != nil {
		return entities.Task{}, result.Error
	}
	if result.RowsAffected == 0 {
		var row taskModel
		err := r.db.WithContext(ctx).Where("task_id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Task{}, domainerrors.ErrTaskNotFound
		}
		if err != nil {
			return entities.Task{}, err
		}
		if row.Status != string(entities.TaskStatusPending) {
			return entities.Task{}, domainerrors.ErrTaskTerminal
		}
		return entities.Task{}, domainerrors.ErrVersionConflict
	}

	var updated taskModel
	if err := r.db.WithContext(ctx).Where("task_id = ?", id).First(&updated).Error; err != nil {
		return entities.Task{}, err
	}
	return updated.toEntity(), nil
}

func (r *Repository) ExpireDueTasks(ctx context.Context, now time.Time, limit int) ([]entities.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	timestamp := now.UTC()

	expired := make([]entities.Task, 0)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []taskModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND due_date < ?", string(entities.TaskStatusPending), timestamp).
			Order("due_date ASC").
			Limit(limit).
			Find(&rows).
			Error; err != nil {
			return err
		}

		for _, row := range rows {
			result := tx.Model(&taskModel{}).
				Where("task_id = ? AND version = ? AND status = ?", row.TaskID, row.Version, string(entities.TaskStatusPending)).
				Updates(map[string]any{
					"status":          string(entities.TaskStatusExpired),
					"version":         gorm.Expr("version + 1"),
					"decided_by":      "system",
					"decision_reason": "due_date_passed",
					"decided_at":      timestamp,
					"updated_at":      timestamp,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				continue
			}
			task := row.toEntity()
			task.Status = entities.TaskStatusExpired
			task.Version = row.Version + 1
			task.DecidedBy = "system"
			task.DecisionReason = "due_date_passed"
			decidedAt := timestamp
			task.DecidedAt = &decidedAt
			task.UpdatedAt = timestamp
			expired = append(expired, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return err
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrInvalidTaskInput
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrTaskNotFound
	}
	return nil
}

type taskModel struct {
	TaskID         string     `gorm:"column:task_id;primaryKey"`
	TenantID       string     `gorm:"column:tenant_id"`
	TaskType       string     `gorm:"column:task_type"`
	SubjectRef     string     `gorm:"column:subject_ref"`
	Status         string     `gorm:"column:status"`
	Version        int        `gorm:"column:version"`
	DueDate        time.Time  `gorm:"column:due_date"`
	DecidedBy      string     `gorm:"column:decided_by"`
	DecisionReason string     `gorm:"column:decision_reason"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	DecidedAt      *time.Time `gorm:"column:decided_at"`
}

func (taskModel) TableName() string {
	return "approval_tasks"
}

func taskModelFromEntity(item entities.Task) taskModel {
	return taskModel{
		TaskID:         strings.TrimSpace(item.TaskID),
		TenantID:       strings.TrimSpace(item.TenantID),
		TaskType:       string(item.Type),
		SubjectRef:     strings.TrimSpace(item.SubjectRef),
		Status:         string(item.Status),
		Version:        item.Version,
		DueDate:        item.DueDate.UTC(),
		DecidedBy:      strings.TrimSpace(item.DecidedBy),
		DecisionReason: strings.TrimSpace(item.DecisionReason),
		CreatedAt:      item.CreatedAt.UTC(),
		UpdatedAt:      item.UpdatedAt.UTC(),
		DecidedAt:      normalizeOptionalTime(item.DecidedAt),
	}
}

func (m taskModel) toEntity() entities.Task {
	return entities.Task{
		TaskID:         m.TaskID,
		TenantID:       m.TenantID,
		Type:           entities.TaskType(m.TaskType),
		SubjectRef:     m.SubjectRef,
		Status:         entities.TaskStatus(m.Status),
		Version:        m.Version,
		DueDate:        m.DueDate.UTC(),
		DecidedBy:      m.DecidedBy,
		DecisionReason: m.DecisionReason,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
		DecidedAt:      normalizeOptionalTime(m.DecidedAt),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "approval_outbox"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
