package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"adbroker/contexts/media-buying/signal-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/signal-service/domain/errors"
	"adbroker/contexts/media-buying/signal-service/ports"

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

func (r *Repository) CreateActivation(ctx context.Context, activation entities.SignalActivation) error {
	row := activationModelFromEntity(activation)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidActivationInput
		}
		return err
	}
	return nil
}

func (r *Repository) GetActivation(ctx context.Context, activationID string) (entities.SignalActivation, error) {
	var row activationModel
	err := r.db.WithContext(ctx).
		Where("activation_id = ?", strings.TrimSpace(activationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.SignalActivation{}, domainerrors.ErrActivationNotFound
		}
		return entities.SignalActivation{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) FindByPackage(ctx context.Context, mediaBuyID string, packageID string) (entities.SignalActivation, bool, error) {
	var row activationModel
	err := r.db.WithContext(ctx).
		Where("media_buy_id = ? AND package_id = ?", strings.TrimSpace(mediaBuyID), strings.TrimSpace(packageID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.SignalActivation{}, false, nil
		}
		return entities.SignalActivation{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListByMediaBuy(ctx context.Context, mediaBuyID string) ([]entities.SignalActivation, error) {
	var rows []activationModel
	err := r.db.WithContext(ctx).
		Where("media_buy_id = ?", strings.TrimSpace(mediaBuyID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.SignalActivation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListDuePending(ctx context.Context, now time.Time, limit int) ([]entities.SignalActivation, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []activationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND webhook_received = ? AND next_poll_at IS NOT NULL AND next_poll_at <= ?",
			string(entities.ActivationStatusPending), false, now.UTC()).
		Order("next_poll_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.SignalActivation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// ApplyPollResult is the poll-side compare-and-swap: the UPDATE is guarded on
// pending status, no received webhook, and the exact poll count the caller
// observed. Zero rows affected means a webhook or a competing tick advanced
// the row first.
func (r *Repository) ApplyPollResult(ctx context.Context, activationID string, expectedPollCount int, result ports.PollResult) (entities.SignalActivation, error) {
	id := strings.TrimSpace(activationID)
	polledAt := result.PolledAt.UTC()

	updates := map[string]any{
		"status":           string(result.Status),
		"poll_count":       gorm.Expr("poll_count + 1"),
		"transient_errors": 0,
		"last_polled_at":   polledAt,
		"updated_at":       polledAt,
	}
	if result.Status == entities.ActivationStatusPending {
		updates["next_poll_at"] = result.NextPollAt.UTC()
	} else {
		updates["failure_reason"] = strings.TrimSpace(result.Reason)
		updates["next_poll_at"] = nil
	}

	updateResult := r.db.WithContext(ctx).
		Model(&activationModel{}).
		Where("activation_id = ? AND status = ? AND webhook_received = ? AND poll_count = ?",
			id, string(entities.ActivationStatusPending), false, expectedPollCount).
		Updates(updates)
	if updateResult.Error != nil {
		return entities.SignalActivation{}, updateResult.Error
	}
	if updateResult.RowsAffected == 0 {
		return entities.SignalActivation{}, r.classifyConflict(ctx, id)
	}
	return r.GetActivation(ctx, id)
}

func (r *Repository) ApplyTransientError(ctx context.Context, activationID string, observedAt time.Time) (entities.SignalActivation, error) {
	id := strings.TrimSpace(activationID)
	timestamp := observedAt.UTC()

	result := r.db.WithContext(ctx).
		Model(&activationModel{}).
		Where("activation_id = ? AND status = ? AND webhook_received = ?",
			id, string(entities.ActivationStatusPending), false).
		Updates(map[string]any{
			"transient_errors": gorm.Expr("transient_errors + 1"),
			"updated_at":       timestamp,
		})
	if result.Error != nil {
		return entities.SignalActivation{}, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetActivation(ctx, id); err != nil {
			return entities.SignalActivation{}, err
		}
		return entities.SignalActivation{}, domainerrors.ErrActivationTerminal
	}
	return r.GetActivation(ctx, id)
}

// ApplyWebhookResult lets push win over pull: the guard only requires that
// the row has not reached a terminal state, so an in-flight poll's later CAS
// loses cleanly.
func (r *Repository) ApplyWebhookResult(ctx context.Context, activationID string, result ports.WebhookResult) (entities.SignalActivation, error) {
	id := strings.TrimSpace(activationID)
	receivedAt := result.ReceivedAt.UTC()

	updates := map[string]any{
		"webhook_received": true,
		"last_webhook_at":  receivedAt,
		"updated_at":       receivedAt,
	}
	if result.Status != entities.ActivationStatusPending {
		updates["status"] = string(result.Status)
		updates["failure_reason"] = strings.TrimSpace(result.Reason)
		updates["next_poll_at"] = nil
	}

	updateResult := r.db.WithContext(ctx).
		Model(&activationModel{}).
		Where("activation_id = ? AND status = ?", id, string(entities.ActivationStatusPending)).
		Updates(updates)
	if updateResult.Error != nil {
		return entities.SignalActivation{}, updateResult.Error
	}
	if updateResult.RowsAffected == 0 {
		if _, err := r.GetActivation(ctx, id); err != nil {
			return entities.SignalActivation{}, err
		}
		return entities.SignalActivation{}, domainerrors.ErrActivationTerminal
	}
	return r.GetActivation(ctx, id)
}

func (r *Repository) FailActivation(ctx context.Context, activationID string, reason string, now time.Time) (entities.SignalActivation, error) {
	id := strings.TrimSpace(activationID)
	timestamp := now.UTC()

	result := r.db.WithContext(ctx).
		Model(&activationModel{}).
		Where("activation_id = ? AND status = ?", id, string(entities.ActivationStatusPending)).
		Updates(map[string]any{
			"status":         string(entities.ActivationStatusFailed),
			"failure_reason": strings.TrimSpace(reason),
			"next_poll_at":   nil,
			"updated_at":     timestamp,
		})
	if result.Error != nil {
		return entities.SignalActivation{}, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetActivation(ctx, id); err != nil {
			return entities.SignalActivation{}, err
		}
		return entities.SignalActivation{}, domainerrors.ErrActivationTerminal
	}
	return r.GetActivation(ctx, id)
}

func (r *Repository) ExpirePendingByMediaBuy(ctx context.Context, mediaBuyID string, now time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&activationModel{}).
		Where("media_buy_id = ? AND status = ?", strings.TrimSpace(mediaBuyID), string(entities.ActivationStatusPending)).
		Updates(map[string]any{
			"status":       string(entities.ActivationStatusExpired),
			"next_poll_at": nil,
			"updated_at":   now.UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// classifyConflict distinguishes a missing row, a terminal row, and a live
// poll-count race after a zero-row CAS.
func (r *Repository) classifyConflict(ctx context.Context, activationID string) error {
	current, err := r.GetActivation(ctx, activationID)
	if err != nil {
		return err
	}
	if current.Terminal() {
		return domainerrors.ErrActivationTerminal
	}
	return domainerrors.ErrPollCountConflict
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
		return domainerrors.ErrInvalidActivationInput
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
		return domainerrors.ErrActivationNotFound
	}
	return nil
}

type activationModel struct {
	ActivationID        string     `gorm:"column:activation_id;primaryKey"`
	TenantID            string     `gorm:"column:tenant_id"`
	MediaBuyID          string     `gorm:"column:media_buy_id"`
	PackageID           string     `gorm:"column:package_id"`
	SignalRef           string     `gorm:"column:signal_ref"`
	Status              string     `gorm:"column:status"`
	FailureReason       string     `gorm:"column:failure_reason"`
	PollIntervalMinutes int        `gorm:"column:poll_interval_minutes"`
	PollCount           int        `gorm:"column:poll_count"`
	MaxPollAttempts     int        `gorm:"column:max_poll_attempts"`
	TransientErrors     int        `gorm:"column:transient_errors"`
	NextPollAt          *time.Time `gorm:"column:next_poll_at"`
	WebhookReceived     bool       `gorm:"column:webhook_received"`
	LastWebhookAt       *time.Time `gorm:"column:last_webhook_at"`
	LastPolledAt        *time.Time `gorm:"column:last_polled_at"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (activationModel) TableName() string {
	return "signal_activations"
}

func activationModelFromEntity(item entities.SignalActivation) activationModel {
	return activationModel{
		ActivationID:        strings.TrimSpace(item.ActivationID),
		TenantID:            strings.TrimSpace(item.TenantID),
		MediaBuyID:          strings.TrimSpace(item.MediaBuyID),
		PackageID:           strings.TrimSpace(item.PackageID),
		SignalRef:           strings.TrimSpace(item.SignalRef),
		Status:              string(item.Status),
		FailureReason:       strings.TrimSpace(item.FailureReason),
		PollIntervalMinutes: item.PollIntervalMinutes,
		PollCount:           item.PollCount,
		MaxPollAttempts:     item.MaxPollAttempts,
		TransientErrors:     item.TransientErrors,
		NextPollAt:          normalizeOptionalTime(item.NextPollAt),
		WebhookReceived:     item.WebhookReceived,
		LastWebhookAt:       normalizeOptionalTime(item.LastWebhookAt),
		LastPolledAt:        normalizeOptionalTime(item.LastPolledAt),
		CreatedAt:           item.CreatedAt.UTC(),
		UpdatedAt:           item.UpdatedAt.UTC(),
	}
}

func (m activationModel) toEntity() entities.SignalActivation {
	return entities.SignalActivation{
		ActivationID:        m.ActivationID,
		TenantID:            m.TenantID,
		MediaBuyID:          m.MediaBuyID,
		PackageID:           m.PackageID,
		SignalRef:           m.SignalRef,
		Status:              entities.ActivationStatus(m.Status),
		FailureReason:       m.FailureReason,
		PollIntervalMinutes: m.PollIntervalMinutes,
		PollCount:           m.PollCount,
		MaxPollAttempts:     m.MaxPollAttempts,
		TransientErrors:     m.TransientErrors,
		NextPollAt:          normalizeOptionalTime(m.NextPollAt),
		WebhookReceived:     m.WebhookReceived,
		LastWebhookAt:       normalizeOptionalTime(m.LastWebhookAt),
		LastPolledAt:        normalizeOptionalTime(m.LastPolledAt),
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
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
	return "signal_outbox"
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
