package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	"adbroker/contexts/media-buying/mediabuy-service/domain/services"
	"adbroker/contexts/media-buying/mediabuy-service/ports"

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

func (r *Repository) CreateMediaBuy(ctx context.Context, buy entities.MediaBuy, packages []entities.Package) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		buyRow := buyModelFromEntity(buy)
		if err := tx.Create(&buyRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrInvalidBuyInput
			}
			return err
		}
		for _, pkg := range packages {
			pkgRow, err := packageModelFromEntity(pkg)
			if err != nil {
				return err
			}
			if err := tx.Create(&pkgRow).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrInvalidBuyInput
				}
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetMediaBuy(ctx context.Context, mediaBuyID string) (entities.MediaBuy, error) {
	var row buyModel
	err := r.db.WithContext(ctx).
		Where("media_buy_id = ?", strings.TrimSpace(mediaBuyID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.MediaBuy{}, domainerrors.ErrMediaBuyNotFound
		}
		return entities.MediaBuy{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListMediaBuys(ctx context.Context, filter ports.BuyFilter) ([]entities.MediaBuy, error) {
	tx := r.db.WithContext(ctx).Model(&buyModel{})
	if strings.TrimSpace(filter.TenantID) != "" {
		tx = tx.Where("tenant_id = ?", strings.TrimSpace(filter.TenantID))
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}

	var rows []buyModel
	if err := tx.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.MediaBuy, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListPackages(ctx context.Context, mediaBuyID string) ([]entities.Package, error) {
	var rows []packageModel
	err := r.db.WithContext(ctx).
		Where("media_buy_id = ?", strings.TrimSpace(mediaBuyID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.Package, 0, len(rows))
	for _, row := range rows {
		pkg, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, pkg)
	}
	return items, nil
}

func (r *Repository) GetPackage(ctx context.Context, mediaBuyID string, packageID string) (entities.Package, error) {
	var row packageModel
	err := r.db.WithContext(ctx).
		Where("media_buy_id = ? AND package_id = ?", strings.TrimSpace(mediaBuyID), strings.TrimSpace(packageID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Package{}, domainerrors.ErrPackageNotFound
		}
		return entities.Package{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListCreatives(ctx context.Context, mediaBuyID string) ([]entities.CreativeAsset, error) {
	var rows []creativeModel
	err := r.db.WithContext(ctx).
		Where("media_buy_id = ?", strings.TrimSpace(mediaBuyID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.CreativeAsset, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) AttachCreative(ctx context.Context, asset entities.CreativeAsset) error {
	row := creativeModelFromEntity(asset)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidBuyInput
		}
		return err
	}
	return nil
}

// TransitionStatus is the single status-write primitive: an UPDATE guarded
// on the current status plus the audit insert, committed together. A lost
// race observes zero affected rows and returns ErrStaleTransition without
// writing audit.
func (r *Repository) TransitionStatus(ctx context.Context, mediaBuyID string, transition ports.Transition) (entities.MediaBuy, error) {
	id := strings.TrimSpace(mediaBuyID)
	if !services.CanTransition(transition.From, transition.To) {
		return entities.MediaBuy{}, domainerrors.ErrStaleTransition
	}
	at := transition.At.UTC()

	updates := map[string]any{
		"status":     string(transition.To),
		"updated_at": at,
	}
	if transition.Patch.FailureReason != nil {
		updates["failure_reason"] = *transition.Patch.FailureReason
	}
	if transition.Patch.ApprovalState != nil {
		updates["approval_state"] = string(*transition.Patch.ApprovalState)
	}
	if transition.Patch.BackendOrderID != nil {
		updates["backend_order_id"] = *transition.Patch.BackendOrderID
	}
	if transition.Patch.ActivatedAt != nil {
		updates["activated_at"] = transition.Patch.ActivatedAt.UTC()
	}
	if transition.Patch.CompletedAt != nil {
		updates["completed_at"] = transition.Patch.CompletedAt.UTC()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&buyModel{}).
			Where("media_buy_id = ? AND status = ?", id, string(transition.From)).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var row buyModel
			err := tx.Where("media_buy_id = ?", id).First(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrMediaBuyNotFound
			}
			if err != nil {
				return err
			}
			return domainerrors.ErrStaleTransition
		}

		auditRow := auditModel{
			AuditID:    uuid.NewString(),
			MediaBuyID: id,
			FromStatus: string(transition.From),
			ToStatus:   string(transition.To),
			Actor:      strings.TrimSpace(transition.Actor),
			Reason:     strings.TrimSpace(transition.Reason),
			CreatedAt:  at,
		}
		return tx.Create(&auditRow).Error
	})
	if err != nil {
		return entities.MediaBuy{}, err
	}
	return r.GetMediaBuy(ctx, id)
}

func (r *Repository) SetApprovalState(ctx context.Context, mediaBuyID string, state entities.ApprovalState, at time.Time) (entities.MediaBuy, error) {
	id := strings.TrimSpace(mediaBuyID)
	result := r.db.WithContext(ctx).
		Model(&buyModel{}).
		Where("media_buy_id = ?", id).
		Updates(map[string]any{
			"approval_state": string(state),
			"updated_at":     at.UTC(),
		})
	if result.Error != nil {
		return entities.MediaBuy{}, result.Error
	}
	if result.RowsAffected == 0 {
		return entities.MediaBuy{}, domainerrors.ErrMediaBuyNotFound
	}
	return r.GetMediaBuy(ctx, id)
}

func (r *Repository) ListAudit(ctx context.Context, mediaBuyID string) ([]entities.AuditEntry, error) {
	var rows []auditModel
	err := r.db.WithContext(ctx).
		Where("media_buy_id = ?", strings.TrimSpace(mediaBuyID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.AuditEntry{
			AuditID:    row.AuditID,
			MediaBuyID: row.MediaBuyID,
			FromStatus: entities.BuyStatus(row.FromStatus),
			ToStatus:   entities.BuyStatus(row.ToStatus),
			Actor:      row.Actor,
			Reason:     row.Reason,
			CreatedAt:  row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) ListFlightEnded(ctx context.Context, now time.Time, limit int) ([]entities.MediaBuy, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []buyModel
	err := r.db.WithContext(ctx).
		Where("status NOT IN ? AND flight_end < ?",
			[]string{string(entities.BuyStatusCompleted), string(entities.BuyStatusFailed)}, now.UTC()).
		Order("flight_end ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.MediaBuy, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
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
		return domainerrors.ErrInvalidBuyInput
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
		return domainerrors.ErrMediaBuyNotFound
	}
	return nil
}

// ReserveEvent inserts the dedup row; a conflicting insert with the same
// payload hash means the event was already processed.
func (r *Repository) ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	row := dedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: payloadHash,
		ExpiresAt:   expiresAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return false, createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return false, nil
	}

	var existing dedupModel
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", row.EventID).
		First(&existing).
		Error; err != nil {
		return false, err
	}
	return existing.PayloadHash == payloadHash, nil
}

type buyModel struct {
	MediaBuyID     string     `gorm:"column:media_buy_id;primaryKey"`
	TenantID       string     `gorm:"column:tenant_id"`
	PrincipalID    string     `gorm:"column:principal_id"`
	BuyerRef       string     `gorm:"column:buyer_ref"`
	ContextID      string     `gorm:"column:context_id"`
	Status         string     `gorm:"column:status"`
	FailureReason  string     `gorm:"column:failure_reason"`
	ApprovalState  string     `gorm:"column:approval_state"`
	BackendOrderID string     `gorm:"column:backend_order_id"`
	BudgetTotal    float64    `gorm:"column:budget_total"`
	FlightStart    time.Time  `gorm:"column:flight_start"`
	FlightEnd      time.Time  `gorm:"column:flight_end"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	ActivatedAt    *time.Time `gorm:"column:activated_at"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
}

func (buyModel) TableName() string {
	return "media_buys"
}

func buyModelFromEntity(item entities.MediaBuy) buyModel {
	return buyModel{
		MediaBuyID:     strings.TrimSpace(item.MediaBuyID),
		TenantID:       strings.TrimSpace(item.TenantID),
		PrincipalID:    strings.TrimSpace(item.PrincipalID),
		BuyerRef:       strings.TrimSpace(item.BuyerRef),
		ContextID:      strings.TrimSpace(item.ContextID),
		Status:         string(item.Status),
		FailureReason:  strings.TrimSpace(item.FailureReason),
		ApprovalState:  string(item.ApprovalState),
		BackendOrderID: strings.TrimSpace(item.BackendOrderID),
		BudgetTotal:    item.BudgetTotal,
		FlightStart:    item.FlightStart.UTC(),
		FlightEnd:      item.FlightEnd.UTC(),
		CreatedAt:      item.CreatedAt.UTC(),
		UpdatedAt:      item.UpdatedAt.UTC(),
		ActivatedAt:    normalizeOptionalTime(item.ActivatedAt),
		CompletedAt:    normalizeOptionalTime(item.CompletedAt),
	}
}

func (m buyModel) toEntity() entities.MediaBuy {
	return entities.MediaBuy{
		MediaBuyID:     m.MediaBuyID,
		TenantID:       m.TenantID,
		PrincipalID:    m.PrincipalID,
		BuyerRef:       m.BuyerRef,
		ContextID:      m.ContextID,
		Status:         entities.BuyStatus(m.Status),
		FailureReason:  m.FailureReason,
		ApprovalState:  entities.ApprovalState(m.ApprovalState),
		BackendOrderID: m.BackendOrderID,
		BudgetTotal:    m.BudgetTotal,
		FlightStart:    m.FlightStart.UTC(),
		FlightEnd:      m.FlightEnd.UTC(),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
		ActivatedAt:    normalizeOptionalTime(m.ActivatedAt),
		CompletedAt:    normalizeOptionalTime(m.CompletedAt),
	}
}

type packageModel struct {
	PackageID  string    `gorm:"column:package_id;primaryKey"`
	MediaBuyID string    `gorm:"column:media_buy_id"`
	ProductRef string    `gorm:"column:product_ref"`
	Budget     float64   `gorm:"column:budget"`
	FormatIDs  []byte    `gorm:"column:format_ids;type:jsonb"`
	SignalRef  string    `gorm:"column:signal_ref"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (packageModel) TableName() string {
	return "media_buy_packages"
}

func packageModelFromEntity(item entities.Package) (packageModel, error) {
	formatIDs, err := json.Marshal(item.FormatIDs)
	if err != nil {
		return packageModel{}, err
	}
	return packageModel{
		PackageID:  strings.TrimSpace(item.PackageID),
		MediaBuyID: strings.TrimSpace(item.MediaBuyID),
		ProductRef: strings.TrimSpace(item.ProductRef),
		Budget:     item.Budget,
		FormatIDs:  formatIDs,
		SignalRef:  strings.TrimSpace(item.SignalRef),
		CreatedAt:  item.CreatedAt.UTC(),
	}, nil
}

func (m packageModel) toEntity() (entities.Package, error) {
	var formatIDs []string
	if len(m.FormatIDs) > 0 {
		if err := json.Unmarshal(m.FormatIDs, &formatIDs); err != nil {
			return entities.Package{}, err
		}
	}
	return entities.Package{
		PackageID:  m.PackageID,
		MediaBuyID: m.MediaBuyID,
		ProductRef: m.ProductRef,
		Budget:     m.Budget,
		FormatIDs:  formatIDs,
		SignalRef:  m.SignalRef,
		CreatedAt:  m.CreatedAt.UTC(),
	}, nil
}

type creativeModel struct {
	AssetID    string    `gorm:"column:asset_id;primaryKey"`
	MediaBuyID string    `gorm:"column:media_buy_id"`
	PackageID  string    `gorm:"column:package_id"`
	FormatID   string    `gorm:"column:format_id"`
	AssetURI   string    `gorm:"column:asset_uri"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (creativeModel) TableName() string {
	return "creative_assets"
}

func creativeModelFromEntity(item entities.CreativeAsset) creativeModel {
	return creativeModel{
		AssetID:    strings.TrimSpace(item.AssetID),
		MediaBuyID: strings.TrimSpace(item.MediaBuyID),
		PackageID:  strings.TrimSpace(item.PackageID),
		FormatID:   strings.TrimSpace(item.FormatID),
		AssetURI:   strings.TrimSpace(item.AssetURI),
		CreatedAt:  item.CreatedAt.UTC(),
	}
}

func (m creativeModel) toEntity() entities.CreativeAsset {
	return entities.CreativeAsset{
		AssetID:    m.AssetID,
		MediaBuyID: m.MediaBuyID,
		PackageID:  m.PackageID,
		FormatID:   m.FormatID,
		AssetURI:   m.AssetURI,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type auditModel struct {
	AuditID    string    `gorm:"column:audit_id;primaryKey"`
	MediaBuyID string    `gorm:"column:media_buy_id"`
	FromStatus string    `gorm:"column:from_status"`
	ToStatus   string    `gorm:"column:to_status"`
	Actor      string    `gorm:"column:actor"`
	Reason     string    `gorm:"column:reason"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (auditModel) TableName() string {
	return "media_buy_audit"
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
	return "mediabuy_outbox"
}

type dedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (dedupModel) TableName() string {
	return "mediabuy_event_dedup"
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
