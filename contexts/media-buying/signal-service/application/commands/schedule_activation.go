package commands

import (
	"context"
	"log/slog"
	"strings"

	application "adbroker/contexts/media-buying/signal-service/application"
	"adbroker/contexts/media-buying/signal-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/signal-service/domain/errors"
	"adbroker/contexts/media-buying/signal-service/ports"
)

type ScheduleActivationCommand struct {
	TenantID            string
	MediaBuyID          string
	PackageID           string
	SignalRef           string
	PollIntervalMinutes int
	MaxPollAttempts     int
}

type ScheduleActivationUseCase struct {
	Activations ports.ActivationRepository
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

// Execute schedules the asynchronous backend activation for one package's
// signal. Idempotent per (media buy, package): a re-run returns the
// existing activation instead of scheduling a second poll chain.
func (uc ScheduleActivationUseCase) Execute(ctx context.Context, cmd ScheduleActivationCommand) (entities.SignalActivation, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.TenantID) == "" ||
		strings.TrimSpace(cmd.MediaBuyID) == "" ||
		strings.TrimSpace(cmd.PackageID) == "" ||
		strings.TrimSpace(cmd.SignalRef) == "" {
		return entities.SignalActivation{}, domainerrors.ErrInvalidActivationInput
	}

	existing, found, err := uc.Activations.FindByPackage(ctx, strings.TrimSpace(cmd.MediaBuyID), strings.TrimSpace(cmd.PackageID))
	if err != nil {
		return entities.SignalActivation{}, err
	}
	if found {
		return existing, nil
	}

	interval := cmd.PollIntervalMinutes
	if interval <= 0 {
		interval = entities.DefaultPollIntervalMinutes
	}
	maxAttempts := cmd.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = entities.DefaultMaxPollAttempts
	}

	now := uc.Clock.Now().UTC()
	activationID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.SignalActivation{}, err
	}
	nextPoll := now.Add(activationInterval(interval))
	activation := entities.SignalActivation{
		ActivationID:        activationID,
		TenantID:            strings.TrimSpace(cmd.TenantID),
		MediaBuyID:          strings.TrimSpace(cmd.MediaBuyID),
		PackageID:           strings.TrimSpace(cmd.PackageID),
		SignalRef:           strings.TrimSpace(cmd.SignalRef),
		Status:              entities.ActivationStatusPending,
		PollIntervalMinutes: interval,
		MaxPollAttempts:     maxAttempts,
		NextPollAt:          &nextPoll,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := uc.Activations.CreateActivation(ctx, activation); err != nil {
		return entities.SignalActivation{}, err
	}

	logger.Info("signal activation scheduled",
		"event", "signal_activation_scheduled",
		"module", "media-buying/signal-service",
		"layer", "application",
		"activation_id", activation.ActivationID,
		"media_buy_id", activation.MediaBuyID,
		"package_id", activation.PackageID,
		"signal_ref", activation.SignalRef,
		"poll_interval_minutes", activation.PollIntervalMinutes,
		"max_poll_attempts", activation.MaxPollAttempts,
	)
	return activation, nil
}
