package entities

import "time"

type BuyStatus string

const (
	BuyStatusPendingCreative BuyStatus = "pending_creative"
	BuyStatusPendingApproval BuyStatus = "pending_approval"
	BuyStatusActive          BuyStatus = "active"
	BuyStatusPaused          BuyStatus = "paused"
	BuyStatusCompleted       BuyStatus = "completed"
	BuyStatusFailed          BuyStatus = "failed"
)

const (
	FailureReasonTaskRejected      = "task_rejected"
	FailureReasonActivationFailed  = "signal_activation_failed"
	FailureReasonAdapterFatal      = "adapter_fatal"
	FailureReasonFlightUnfulfilled = "flight_expired_unfulfilled"
)

// ApprovalState is the buy's cached view of its gating approval task. Only
// the task-resolution consumer writes approved/rejected.
type ApprovalState string

const (
	ApprovalStateNone     ApprovalState = "none"
	ApprovalStateRequired ApprovalState = "required"
	ApprovalStateApproved ApprovalState = "approved"
	ApprovalStateRejected ApprovalState = "rejected"
)

// MediaBuy is one purchased campaign flight on a backend ad server. Status
// moves only through the transition table in domain/services; every change
// is written together with an audit row.
type MediaBuy struct {
	MediaBuyID     string
	TenantID       string
	PrincipalID    string
	BuyerRef       string
	ContextID      string
	Status         BuyStatus
	FailureReason  string
	ApprovalState  ApprovalState
	BackendOrderID string
	BudgetTotal    float64
	FlightStart    time.Time
	FlightEnd      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ActivatedAt    *time.Time
	CompletedAt    *time.Time
}

func (b MediaBuy) Terminal() bool {
	return b.Status == BuyStatusCompleted || b.Status == BuyStatusFailed
}

func (b MediaBuy) FlightEnded(now time.Time) bool {
	return b.FlightEnd.UTC().Before(now.UTC())
}

// Package is one product line of a media buy. A package with a signal ref
// gates activation on the signal reaching activated.
type Package struct {
	PackageID  string
	MediaBuyID string
	ProductRef string
	Budget     float64
	FormatIDs  []string
	SignalRef  string
	CreatedAt  time.Time
}

func (p Package) SupportsFormat(formatID string) bool {
	for _, id := range p.FormatIDs {
		if id == formatID {
			return true
		}
	}
	return false
}

// CreativeAsset is one uploaded creative bound to a package format.
type CreativeAsset struct {
	AssetID    string
	MediaBuyID string
	PackageID  string
	FormatID   string
	AssetURI   string
	CreatedAt  time.Time
}

// AuditEntry is one row of the append-only status history, written in the
// same transaction as the status change it records.
type AuditEntry struct {
	AuditID    string
	MediaBuyID string
	FromStatus BuyStatus
	ToStatus   BuyStatus
	Actor      string
	Reason     string
	CreatedAt  time.Time
}

// DeliveryReport is the backend's spend/impression snapshot for one buy.
type DeliveryReport struct {
	MediaBuyID  string
	AsOf        time.Time
	Impressions int64
	Spend       float64
	Currency    string
}
