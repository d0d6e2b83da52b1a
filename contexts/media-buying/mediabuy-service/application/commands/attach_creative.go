package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "adbroker/contexts/media-buying/mediabuy-service/application"
	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	"adbroker/contexts/media-buying/mediabuy-service/domain/services"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

type AttachCreativeCommand struct {
	MediaBuyID string
	PackageID  string
	FormatID   string
	AssetURI   string
	Actor      string
}

type AttachCreativeUseCase struct {
	Buys         ports.MediaBuyRepository
	Approvals    ports.ApprovalQueue
	Policy       ports.TenantPolicyProvider
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	ReviewWindow time.Duration
	Logger       *slog.Logger
}

// Execute attaches one creative asset and, once every package is covered,
// moves the buy to pending_approval. Tenant policy decides the approval
// gate: manual opens a review task, auto marks the buy approved outright.
func (uc AttachCreativeUseCase) Execute(ctx context.Context, cmd AttachCreativeCommand) (entities.MediaBuy, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.MediaBuyID) == "" ||
		strings.TrimSpace(cmd.PackageID) == "" ||
		strings.TrimSpace(cmd.FormatID) == "" ||
		strings.TrimSpace(cmd.AssetURI) == "" {
		return entities.MediaBuy{}, domainerrors.ErrInvalidBuyInput
	}

	buy, err := uc.Buys.GetMediaBuy(ctx, strings.TrimSpace(cmd.MediaBuyID))
	if err != nil {
		return entities.MediaBuy{}, err
	}
	if buy.Status != entities.BuyStatusPendingCreative {
		// A prior attach moved the buy to review but died before the
		// approval policy committed; finish that work instead of refusing.
		if buy.Status == entities.BuyStatusPendingApproval && buy.ApprovalState == entities.ApprovalStateNone {
			return uc.applyApprovalPolicy(ctx, buy, uc.Clock.Now().UTC())
		}
		return entities.MediaBuy{}, domainerrors.ErrStaleTransition
	}

	pkg, err := uc.Buys.GetPackage(ctx, buy.MediaBuyID, strings.TrimSpace(cmd.PackageID))
	if err != nil {
		return entities.MediaBuy{}, err
	}
	formatID := strings.TrimSpace(cmd.FormatID)
	if !pkg.SupportsFormat(formatID) {
		return entities.MediaBuy{}, domainerrors.ErrInvalidBuyInput
	}

	now := uc.Clock.Now().UTC()
	assetID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.MediaBuy{}, err
	}
	asset := entities.CreativeAsset{
		AssetID:    assetID,
		MediaBuyID: buy.MediaBuyID,
		PackageID:  pkg.PackageID,
		FormatID:   formatID,
		AssetURI:   strings.TrimSpace(cmd.AssetURI),
		CreatedAt:  now,
	}
	if err := uc.Buys.AttachCreative(ctx, asset); err != nil {
		return entities.MediaBuy{}, err
	}

	packages, err := uc.Buys.ListPackages(ctx, buy.MediaBuyID)
	if err != nil {
		return entities.MediaBuy{}, err
	}
	assets, err := uc.Buys.ListCreatives(ctx, buy.MediaBuyID)
	if err != nil {
		return entities.MediaBuy{}, err
	}
	if !services.CreativesComplete(packages, assets) {
		return buy, nil
	}

	updated, err := uc.Buys.TransitionStatus(ctx, buy.MediaBuyID, ports.Transition{
		From:   entities.BuyStatusPendingCreative,
		To:     entities.BuyStatusPendingApproval,
		Actor:  strings.TrimSpace(cmd.Actor),
		Reason: "creatives_complete",
		At:     now,
	})
	if err != nil {
		// Another attach completed the set first; the buy already moved on.
		if errors.Is(err, domainerrors.ErrStaleTransition) {
			return uc.Buys.GetMediaBuy(ctx, buy.MediaBuyID)
		}
		return entities.MediaBuy{}, err
	}
	if err := uc.appendStatusEvent(ctx, updated, entities.BuyStatusPendingCreative, now); err != nil {
		return entities.MediaBuy{}, err
	}

	updated, err = uc.applyApprovalPolicy(ctx, updated, now)
	if err != nil {
		return entities.MediaBuy{}, err
	}

	logger.Info("media buy ready for approval",
		"event", "media_buy_creatives_complete",
		"module", "media-buying/mediabuy-service",
		"layer", "application",
		"media_buy_id", updated.MediaBuyID,
		"approval_state", string(updated.ApprovalState),
	)
	return updated, nil
}

func (uc AttachCreativeUseCase) applyApprovalPolicy(ctx context.Context, buy entities.MediaBuy, now time.Time) (entities.MediaBuy, error) {
	mode := ports.ApprovalModeManual
	if uc.Policy != nil {
		resolved, err := uc.Policy.ApprovalMode(ctx, buy.TenantID)
		if err != nil {
			return entities.MediaBuy{}, err
		}
		mode = resolved
	}

	if mode == ports.ApprovalModeAuto {
		return uc.Buys.SetApprovalState(ctx, buy.MediaBuyID, entities.ApprovalStateApproved, now)
	}

	window := uc.ReviewWindow
	if window <= 0 {
		window = 48 * time.Hour
	}
	if uc.Approvals != nil {
		if _, err := uc.Approvals.EnqueueApprovalTask(ctx, buy.TenantID, buy.MediaBuyID, now.Add(window)); err != nil {
			return entities.MediaBuy{}, err
		}
	}
	return uc.Buys.SetApprovalState(ctx, buy.MediaBuyID, entities.ApprovalStateRequired, now)
}

func (uc AttachCreativeUseCase) appendStatusEvent(ctx context.Context, buy entities.MediaBuy, from entities.BuyStatus, now time.Time) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := StatusChangedEnvelope(eventID, buy, from, now)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
