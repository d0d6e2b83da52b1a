package httptransport

type MediaBuyDTO struct {
	MediaBuyID     string  `json:"media_buy_id"`
	TenantID       string  `json:"tenant_id"`
	PrincipalID    string  `json:"principal_id"`
	BuyerRef       string  `json:"buyer_ref"`
	ContextID      string  `json:"context_id,omitempty"`
	Status         string  `json:"status"`
	FailureReason  string  `json:"failure_reason,omitempty"`
	ApprovalState  string  `json:"approval_state"`
	BackendOrderID string  `json:"backend_order_id,omitempty"`
	BudgetTotal    float64 `json:"budget_total"`
	FlightStart    string  `json:"flight_start"`
	FlightEnd      string  `json:"flight_end"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type PackageDTO struct {
	PackageID  string   `json:"package_id"`
	ProductRef string   `json:"product_ref"`
	Budget     float64  `json:"budget"`
	FormatIDs  []string `json:"format_ids"`
	SignalRef  string   `json:"signal_ref,omitempty"`
}

type CreativeDTO struct {
	AssetID   string `json:"asset_id"`
	PackageID string `json:"package_id"`
	FormatID  string `json:"format_id"`
	AssetURI  string `json:"asset_uri"`
}

type AuditEntryDTO struct {
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Actor      string `json:"actor,omitempty"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type PackageRequest struct {
	ProductRef string   `json:"product_ref"`
	Budget     float64  `json:"budget"`
	FormatIDs  []string `json:"format_ids"`
	SignalRef  string   `json:"signal_ref,omitempty"`
}

type CreateMediaBuyRequest struct {
	BuyerRef    string           `json:"buyer_ref"`
	ContextID   string           `json:"context_id,omitempty"`
	BudgetTotal float64          `json:"budget_total"`
	FlightStart string           `json:"flight_start"`
	FlightEnd   string           `json:"flight_end"`
	Packages    []PackageRequest `json:"packages"`
}

type CreateMediaBuyResponse struct {
	MediaBuy MediaBuyDTO `json:"media_buy"`
}

type AttachCreativeRequest struct {
	PackageID string `json:"package_id"`
	FormatID  string `json:"format_id"`
	AssetURI  string `json:"asset_uri"`
}

type MediaBuyResponse struct {
	MediaBuy MediaBuyDTO `json:"media_buy"`
}

type GetMediaBuyResponse struct {
	MediaBuy  MediaBuyDTO     `json:"media_buy"`
	Packages  []PackageDTO    `json:"packages"`
	Creatives []CreativeDTO   `json:"creatives"`
	Audit     []AuditEntryDTO `json:"audit"`
}

type ListMediaBuysResponse struct {
	Items []MediaBuyDTO `json:"items"`
}

type DeliveryResponse struct {
	MediaBuyID  string  `json:"media_buy_id"`
	AsOf        string  `json:"as_of"`
	Impressions int64   `json:"impressions"`
	Spend       float64 `json:"spend"`
	Currency    string  `json:"currency,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
