package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "adbroker/contexts/media-buying/mediabuy-service/application"
	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

type PackageInput struct {
	ProductRef string
	Budget     float64
	FormatIDs  []string
	SignalRef  string
}

type CreateMediaBuyCommand struct {
	TenantID    string
	PrincipalID string
	BuyerRef    string
	ContextID   string
	BudgetTotal float64
	FlightStart time.Time
	FlightEnd   time.Time
	Packages    []PackageInput
}

type CreateMediaBuyUseCase struct {
	Buys    ports.MediaBuyRepository
	Signals ports.SignalScheduler
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

// Execute validates and persists a new buy at pending_creative, then
// schedules a signal activation for every package that gates on one.
// Validation rejects before any state exists; scheduling failures after the
// insert are surfaced so the caller can retry (scheduling is idempotent per
// package).
func (uc CreateMediaBuyUseCase) Execute(ctx context.Context, cmd CreateMediaBuyCommand) (entities.MediaBuy, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := validateCreate(cmd); err != nil {
		return entities.MediaBuy{}, err
	}

	now := uc.Clock.Now().UTC()
	buyID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.MediaBuy{}, err
	}
	buy := entities.MediaBuy{
		MediaBuyID:    buyID,
		TenantID:      strings.TrimSpace(cmd.TenantID),
		PrincipalID:   strings.TrimSpace(cmd.PrincipalID),
		BuyerRef:      strings.TrimSpace(cmd.BuyerRef),
		ContextID:     strings.TrimSpace(cmd.ContextID),
		Status:        entities.BuyStatusPendingCreative,
		ApprovalState: entities.ApprovalStateNone,
		BudgetTotal:   cmd.BudgetTotal,
		FlightStart:   cmd.FlightStart.UTC(),
		FlightEnd:     cmd.FlightEnd.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	packages := make([]entities.Package, 0, len(cmd.Packages))
	for _, input := range cmd.Packages {
		packageID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.MediaBuy{}, err
		}
		packages = append(packages, entities.Package{
			PackageID:  packageID,
			MediaBuyID: buyID,
			ProductRef: strings.TrimSpace(input.ProductRef),
			Budget:     input.Budget,
			FormatIDs:  input.FormatIDs,
			SignalRef:  strings.TrimSpace(input.SignalRef),
			CreatedAt:  now,
		})
	}

	if err := uc.Buys.CreateMediaBuy(ctx, buy, packages); err != nil {
		return entities.MediaBuy{}, err
	}

	if uc.Signals != nil {
		for _, pkg := range packages {
			if pkg.SignalRef == "" {
				continue
			}
			if err := uc.Signals.ScheduleActivation(ctx, buy.TenantID, buy.MediaBuyID, pkg.PackageID, pkg.SignalRef); err != nil {
				return entities.MediaBuy{}, err
			}
		}
	}

	logger.Info("media buy created",
		"event", "media_buy_created",
		"module", "media-buying/mediabuy-service",
		"layer", "application",
		"media_buy_id", buy.MediaBuyID,
		"tenant_id", buy.TenantID,
		"package_count", len(packages),
	)
	return buy, nil
}

func validateCreate(cmd CreateMediaBuyCommand) error {
	if strings.TrimSpace(cmd.TenantID) == "" ||
		strings.TrimSpace(cmd.PrincipalID) == "" ||
		strings.TrimSpace(cmd.BuyerRef) == "" {
		return domainerrors.ErrInvalidBuyInput
	}
	if cmd.BudgetTotal <= 0 {
		return domainerrors.ErrInvalidBuyInput
	}
	if cmd.FlightStart.IsZero() || cmd.FlightEnd.IsZero() || !cmd.FlightEnd.After(cmd.FlightStart) {
		return domainerrors.ErrInvalidBuyInput
	}
	if len(cmd.Packages) == 0 {
		return domainerrors.ErrInvalidBuyInput
	}
	var packageSum float64
	for _, pkg := range cmd.Packages {
		if strings.TrimSpace(pkg.ProductRef) == "" || len(pkg.FormatIDs) == 0 {
			return domainerrors.ErrInvalidBuyInput
		}
		for _, formatID := range pkg.FormatIDs {
			if strings.TrimSpace(formatID) == "" {
				return domainerrors.ErrInvalidBuyInput
			}
		}
		if pkg.Budget <= 0 {
			return domainerrors.ErrInvalidBuyInput
		}
		packageSum += pkg.Budget
	}
	if packageSum > cmd.BudgetTotal {
		return domainerrors.ErrInvalidBuyInput
	}
	return nil
}
