package queries

import (
	"context"
	"strings"
	"time"

	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

// GetDeliveryUseCase is a passthrough to the backend's delivery report;
// delivery numbers are never cached locally.
type GetDeliveryUseCase struct {
	Buys           ports.MediaBuyRepository
	Gateway        ports.AdapterGateway
	Clock          ports.Clock
	AdapterTimeout time.Duration
}

func (uc GetDeliveryUseCase) Execute(ctx context.Context, mediaBuyID string, asOf time.Time) (entities.DeliveryReport, error) {
	id := strings.TrimSpace(mediaBuyID)
	if id == "" {
		return entities.DeliveryReport{}, domainerrors.ErrInvalidBuyInput
	}

	buy, err := uc.Buys.GetMediaBuy(ctx, id)
	if err != nil {
		return entities.DeliveryReport{}, err
	}
	if asOf.IsZero() {
		asOf = uc.Clock.Now()
	}

	callCtx := ctx
	if uc.AdapterTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, uc.AdapterTimeout)
		defer cancel()
	}
	return uc.Gateway.ReportDelivery(callCtx, buy, asOf.UTC())
}
