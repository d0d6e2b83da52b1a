package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"adbroker/contexts/media-buying/signal-service/application/commands"
	"adbroker/contexts/media-buying/signal-service/application/queries"
	"adbroker/contexts/media-buying/signal-service/domain/entities"
	httptransport "adbroker/contexts/media-buying/signal-service/transport/http"
)

type Handler struct {
	RecordWebhook   commands.RecordWebhookUseCase
	GetActivation   queries.GetActivationUseCase
	ListActivations queries.ListActivationsByMediaBuyUseCase
	Logger          *slog.Logger
}

func (h Handler) WebhookHandler(ctx context.Context, activationID string, req httptransport.WebhookRequest) (httptransport.WebhookResponse, error) {
	activation, err := h.RecordWebhook.Execute(ctx, commands.RecordWebhookCommand{
		ActivationID: activationID,
		Result:       req.Result,
		Reason:       req.Reason,
	})
	if err != nil {
		return httptransport.WebhookResponse{}, err
	}
	return httptransport.WebhookResponse{Activation: mapActivation(activation)}, nil
}

func (h Handler) GetActivationHandler(ctx context.Context, activationID string) (httptransport.GetActivationResponse, error) {
	activation, err := h.GetActivation.Execute(ctx, activationID)
	if err != nil {
		return httptransport.GetActivationResponse{}, err
	}
	return httptransport.GetActivationResponse{Activation: mapActivation(activation)}, nil
}

func (h Handler) ListActivationsHandler(ctx context.Context, mediaBuyID string) (httptransport.ListActivationsResponse, error) {
	items, err := h.ListActivations.Execute(ctx, mediaBuyID)
	if err != nil {
		return httptransport.ListActivationsResponse{}, err
	}
	result := make([]httptransport.ActivationDTO, 0, len(items))
	for _, item := range items {
		result = append(result, mapActivation(item))
	}
	return httptransport.ListActivationsResponse{Items: result}, nil
}

func mapActivation(activation entities.SignalActivation) httptransport.ActivationDTO {
	dto := httptransport.ActivationDTO{
		ActivationID:        activation.ActivationID,
		TenantID:            activation.TenantID,
		MediaBuyID:          activation.MediaBuyID,
		PackageID:           activation.PackageID,
		SignalRef:           activation.SignalRef,
		Status:              string(activation.Status),
		FailureReason:       activation.FailureReason,
		PollIntervalMinutes: activation.PollIntervalMinutes,
		PollCount:           activation.PollCount,
		MaxPollAttempts:     activation.MaxPollAttempts,
		WebhookReceived:     activation.WebhookReceived,
		CreatedAt:           activation.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           activation.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if activation.NextPollAt != nil {
		dto.NextPollAt = activation.NextPollAt.UTC().Format(time.RFC3339)
	}
	return dto
}
