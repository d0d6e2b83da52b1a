package queries

import (
	"context"
	"strings"

	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

type ListMediaBuysQuery struct {
	TenantID string
	Status   string
}

type ListMediaBuysUseCase struct {
	Buys ports.MediaBuyRepository
}

func (uc ListMediaBuysUseCase) Execute(ctx context.Context, query ListMediaBuysQuery) ([]entities.MediaBuy, error) {
	return uc.Buys.ListMediaBuys(ctx, ports.BuyFilter{
		TenantID: strings.TrimSpace(query.TenantID),
		Status:   entities.BuyStatus(strings.TrimSpace(query.Status)),
	})
}
