package commands

import (
	"context"
	"log/slog"
	"strings"

	application "adbroker/contexts/media-buying/signal-service/application"
	domainerrors "adbroker/contexts/media-buying/signal-service/domain/errors"
	"adbroker/contexts/media-buying/signal-service/ports"
)

// ExpireActivationsUseCase closes out the pending activations of a media buy
// whose flight window ended. Expired activations emit no events; the caller
// already owns the buy-level failure.
type ExpireActivationsUseCase struct {
	Activations ports.ActivationRepository
	Clock       ports.Clock
	Logger      *slog.Logger
}

func (uc ExpireActivationsUseCase) Execute(ctx context.Context, mediaBuyID string) (int, error) {
	logger := application.ResolveLogger(uc.Logger)
	id := strings.TrimSpace(mediaBuyID)
	if id == "" {
		return 0, domainerrors.ErrInvalidActivationInput
	}

	expired, err := uc.Activations.ExpirePendingByMediaBuy(ctx, id, uc.Clock.Now().UTC())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		logger.Info("pending signal activations expired",
			"event", "signal_activations_expired",
			"module", "media-buying/signal-service",
			"layer", "application",
			"media_buy_id", id,
			"expired_count", expired,
		)
	}
	return expired, nil
}
