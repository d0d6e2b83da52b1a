package queries

import (
	"context"
	"strings"

	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

// MediaBuyView is the read-model shape: the buy plus its packages, assets
// and audit trail in one response.
type MediaBuyView struct {
	Buy       entities.MediaBuy
	Packages  []entities.Package
	Creatives []entities.CreativeAsset
	Audit     []entities.AuditEntry
}

type GetMediaBuyUseCase struct {
	Buys ports.MediaBuyRepository
}

func (uc GetMediaBuyUseCase) Execute(ctx context.Context, mediaBuyID string) (MediaBuyView, error) {
	id := strings.TrimSpace(mediaBuyID)
	if id == "" {
		return MediaBuyView{}, domainerrors.ErrInvalidBuyInput
	}

	buy, err := uc.Buys.GetMediaBuy(ctx, id)
	if err != nil {
		return MediaBuyView{}, err
	}
	packages, err := uc.Buys.ListPackages(ctx, id)
	if err != nil {
		return MediaBuyView{}, err
	}
	creatives, err := uc.Buys.ListCreatives(ctx, id)
	if err != nil {
		return MediaBuyView{}, err
	}
	audit, err := uc.Buys.ListAudit(ctx, id)
	if err != nil {
		return MediaBuyView{}, err
	}
	return MediaBuyView{Buy: buy, Packages: packages, Creatives: creatives, Audit: audit}, nil
}
