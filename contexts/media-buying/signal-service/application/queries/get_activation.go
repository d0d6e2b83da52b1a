package queries

import (
	"context"
	"strings"

	"adbroker/contexts/media-buying/signal-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/signal-service/domain/errors"
	"adbroker/contexts/media-buying/signal-service/ports"
)

type GetActivationUseCase struct {
	Activations ports.ActivationRepository
}

func (uc GetActivationUseCase) Execute(ctx context.Context, activationID string) (entities.SignalActivation, error) {
	id := strings.TrimSpace(activationID)
	if id == "" {
		return entities.SignalActivation{}, domainerrors.ErrInvalidActivationInput
	}
	return uc.Activations.GetActivation(ctx, id)
}

type ListActivationsByMediaBuyUseCase struct {
	Activations ports.ActivationRepository
}

func (uc ListActivationsByMediaBuyUseCase) Execute(ctx context.Context, mediaBuyID string) ([]entities.SignalActivation, error) {
	id := strings.TrimSpace(mediaBuyID)
	if id == "" {
		return nil, domainerrors.ErrInvalidActivationInput
	}
	return uc.Activations.ListByMediaBuy(ctx, id)
}
