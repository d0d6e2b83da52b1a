package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"adbroker/contexts/media-buying/context-service/application"
	"adbroker/contexts/media-buying/context-service/ports"
	httptransport "adbroker/contexts/media-buying/context-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) AppendHandler(ctx context.Context, tenantID string, principalID string, req httptransport.AppendRequest) (httptransport.AppendResponse, error) {
	_, message, err := h.Service.Append(ctx, ports.AppendInput{
		ContextID:   req.ContextID,
		TenantID:    tenantID,
		PrincipalID: principalID,
		Direction:   ports.MessageDirection(req.Direction),
		Payload:     req.Payload,
	})
	if err != nil {
		return httptransport.AppendResponse{}, err
	}
	return httptransport.AppendResponse{
		ContextID:   message.ContextID,
		SequenceNum: message.SequenceNum,
	}, nil
}

func (h Handler) ReadContextHandler(ctx context.Context, tenantID string, contextID string) (httptransport.ReadContextResponse, error) {
	session, messages, err := h.Service.Read(ctx, contextID, tenantID)
	if err != nil {
		return httptransport.ReadContextResponse{}, err
	}

	items := make([]httptransport.MessageDTO, 0, len(messages))
	for _, message := range messages {
		items = append(items, httptransport.MessageDTO{
			SequenceNum: message.SequenceNum,
			PrincipalID: message.PrincipalID,
			Direction:   string(message.Direction),
			Payload:     message.Payload,
			CreatedAt:   message.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return httptransport.ReadContextResponse{
		Context: httptransport.ContextDTO{
			ContextID:      session.ContextID,
			TenantID:       session.TenantID,
			PrincipalID:    session.PrincipalID,
			CreatedAt:      session.CreatedAt.UTC().Format(time.RFC3339),
			LastActivityAt: session.LastActivityAt.UTC().Format(time.RFC3339),
		},
		Messages: items,
	}, nil
}
