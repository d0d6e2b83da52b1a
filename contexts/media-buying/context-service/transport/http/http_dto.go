package httptransport

import "encoding/json"

type ContextDTO struct {
	ContextID      string `json:"context_id"`
	TenantID       string `json:"tenant_id"`
	PrincipalID    string `json:"principal_id"`
	CreatedAt      string `json:"created_at"`
	LastActivityAt string `json:"last_activity_at"`
}

type MessageDTO struct {
	SequenceNum int64           `json:"sequence_num"`
	PrincipalID string          `json:"principal_id"`
	Direction   string          `json:"direction"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   string          `json:"created_at"`
}

type AppendRequest struct {
	ContextID string          `json:"context_id,omitempty"`
	Direction string          `json:"direction"`
	Payload   json.RawMessage `json:"payload"`
}

type AppendResponse struct {
	ContextID   string `json:"context_id"`
	SequenceNum int64  `json:"sequence_num"`
}

type ReadContextResponse struct {
	Context  ContextDTO   `json:"context"`
	Messages []MessageDTO `json:"messages"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
