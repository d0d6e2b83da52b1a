package httptransport

type ActivationDTO struct {
	ActivationID        string `json:"activation_id"`
	TenantID            string `json:"tenant_id"`
	MediaBuyID          string `json:"media_buy_id"`
	PackageID           string `json:"package_id"`
	SignalRef           string `json:"signal_ref"`
	Status              string `json:"status"`
	FailureReason       string `json:"failure_reason,omitempty"`
	PollIntervalMinutes int    `json:"poll_interval_minutes"`
	PollCount           int    `json:"poll_count"`
	MaxPollAttempts     int    `json:"max_poll_attempts"`
	WebhookReceived     bool   `json:"webhook_received"`
	NextPollAt          string `json:"next_poll_at,omitempty"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

type WebhookRequest struct {
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}

type WebhookResponse struct {
	Activation ActivationDTO `json:"activation"`
}

type GetActivationResponse struct {
	Activation ActivationDTO `json:"activation"`
}

type ListActivationsResponse struct {
	Items []ActivationDTO `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
