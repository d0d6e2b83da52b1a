package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "adbroker/contexts/media-buying/context-service/domain/errors"
	"adbroker/contexts/media-buying/context-service/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

// AppendMessage assigns the sequence number inside a transaction holding
// the context row's lock, so concurrent appends to the same context
// serialize at the database and the sequence stays gap-free.
func (r *Repository) AppendMessage(ctx context.Context, input ports.AppendInput, now time.Time) (ports.Context, ports.Message, error) {
	timestamp := now.UTC()
	var session contextModel
	var message messageModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if strings.TrimSpace(input.ContextID) == "" {
			session = contextModel{
				ContextID:      uuid.NewString(),
				TenantID:       input.TenantID,
				PrincipalID:    input.PrincipalID,
				CreatedAt:      timestamp,
				LastActivityAt: timestamp,
			}
			if err := tx.Create(&session).Error; err != nil {
				return err
			}
		} else {
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("context_id = ? AND tenant_id = ?", strings.TrimSpace(input.ContextID), input.TenantID).
				First(&session).
				Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrContextNotFound
			}
			if err != nil {
				return err
			}
		}

		var lastSequence int64
		err := tx.Model(&messageModel{}).
			Where("context_id = ?", session.ContextID).
			Select("COALESCE(MAX(sequence_num), 0)").
			Scan(&lastSequence).
			Error
		if err != nil {
			return err
		}

		message = messageModel{
			ContextID:   session.ContextID,
			SequenceNum: lastSequence + 1,
			PrincipalID: input.PrincipalID,
			Direction:   string(input.Direction),
			Payload:     append([]byte(nil), input.Payload...),
			CreatedAt:   timestamp,
		}
		if err := tx.Create(&message).Error; err != nil {
			return err
		}

		return tx.Model(&contextModel{}).
			Where("context_id = ?", session.ContextID).
			Update("last_activity_at", timestamp).
			Error
	})
	if err != nil {
		return ports.Context{}, ports.Message{}, err
	}

	session.LastActivityAt = timestamp
	return session.toEntity(), message.toEntity(), nil
}

func (r *Repository) GetContext(ctx context.Context, contextID string, tenantID string) (ports.Context, error) {
	var row contextModel
	err := r.db.WithContext(ctx).
		Where("context_id = ? AND tenant_id = ?", strings.TrimSpace(contextID), strings.TrimSpace(tenantID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Context{}, domainerrors.ErrContextNotFound
		}
		return ports.Context{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListMessages(ctx context.Context, contextID string, tenantID string) ([]ports.Message, error) {
	if _, err := r.GetContext(ctx, contextID, tenantID); err != nil {
		return nil, err
	}

	var rows []messageModel
	err := r.db.WithContext(ctx).
		Where("context_id = ?", strings.TrimSpace(contextID)).
		Order("sequence_num ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]ports.Message, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

type contextModel struct {
	ContextID      string    `gorm:"column:context_id;primaryKey"`
	TenantID       string    `gorm:"column:tenant_id"`
	PrincipalID    string    `gorm:"column:principal_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	LastActivityAt time.Time `gorm:"column:last_activity_at"`
}

func (contextModel) TableName() string {
	return "contexts"
}

func (m contextModel) toEntity() ports.Context {
	return ports.Context{
		ContextID:      m.ContextID,
		TenantID:       m.TenantID,
		PrincipalID:    m.PrincipalID,
		CreatedAt:      m.CreatedAt.UTC(),
		LastActivityAt: m.LastActivityAt.UTC(),
	}
}

type messageModel struct {
	ContextID   string    `gorm:"column:context_id;primaryKey"`
	SequenceNum int64     `gorm:"column:sequence_num;primaryKey"`
	PrincipalID string    `gorm:"column:principal_id"`
	Direction   string    `gorm:"column:direction"`
	Payload     []byte    `gorm:"column:payload"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (messageModel) TableName() string {
	return "context_messages"
}

func (m messageModel) toEntity() ports.Message {
	return ports.Message{
		ContextID:   m.ContextID,
		SequenceNum: m.SequenceNum,
		PrincipalID: m.PrincipalID,
		Direction:   ports.MessageDirection(m.Direction),
		Payload:     append([]byte(nil), m.Payload...),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}
