package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"adbroker/contexts/media-buying/mediabuy-service/application/commands"
	"adbroker/contexts/media-buying/mediabuy-service/application/queries"
	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	httptransport "adbroker/contexts/media-buying/mediabuy-service/transport/http"
)

type Handler struct {
	CreateMediaBuy   commands.CreateMediaBuyUseCase
	AttachCreative   commands.AttachCreativeUseCase
	ActivateMediaBuy commands.ActivateMediaBuyUseCase
	PauseMediaBuy    commands.PauseMediaBuyUseCase
	ResumeMediaBuy   commands.ResumeMediaBuyUseCase
	GetMediaBuy      queries.GetMediaBuyUseCase
	ListMediaBuys    queries.ListMediaBuysUseCase
	GetDelivery      queries.GetDeliveryUseCase
	Logger           *slog.Logger
}

func (h Handler) CreateMediaBuyHandler(ctx context.Context, tenantID string, principalID string, req httptransport.CreateMediaBuyRequest) (httptransport.CreateMediaBuyResponse, error) {
	flightStart, err := time.Parse(time.RFC3339, req.FlightStart)
	if err != nil {
		return httptransport.CreateMediaBuyResponse{}, domainerrors.ErrInvalidBuyInput
	}
	flightEnd, err := time.Parse(time.RFC3339, req.FlightEnd)
	if err != nil {
		return httptransport.CreateMediaBuyResponse{}, domainerrors.ErrInvalidBuyInput
	}

	packages := make([]commands.PackageInput, 0, len(req.Packages))
	for _, pkg := range req.Packages {
		packages = append(packages, commands.PackageInput{
			ProductRef: pkg.ProductRef,
			Budget:     pkg.Budget,
			FormatIDs:  pkg.FormatIDs,
			SignalRef:  pkg.SignalRef,
		})
	}

	buy, err := h.CreateMediaBuy.Execute(ctx, commands.CreateMediaBuyCommand{
		TenantID:    tenantID,
		PrincipalID: principalID,
		BuyerRef:    req.BuyerRef,
		ContextID:   req.ContextID,
		BudgetTotal: req.BudgetTotal,
		FlightStart: flightStart,
		FlightEnd:   flightEnd,
		Packages:    packages,
	})
	if err != nil {
		return httptransport.CreateMediaBuyResponse{}, err
	}
	return httptransport.CreateMediaBuyResponse{MediaBuy: mapMediaBuy(buy)}, nil
}

func (h Handler) AttachCreativeHandler(ctx context.Context, actorID string, mediaBuyID string, req httptransport.AttachCreativeRequest) (httptransport.MediaBuyResponse, error) {
	buy, err := h.AttachCreative.Execute(ctx, commands.AttachCreativeCommand{
		MediaBuyID: mediaBuyID,
		PackageID:  req.PackageID,
		FormatID:   req.FormatID,
		AssetURI:   req.AssetURI,
		Actor:      actorID,
	})
	if err != nil {
		return httptransport.MediaBuyResponse{}, err
	}
	return httptransport.MediaBuyResponse{MediaBuy: mapMediaBuy(buy)}, nil
}

func (h Handler) ActivateMediaBuyHandler(ctx context.Context, actorID string, mediaBuyID string) (httptransport.MediaBuyResponse, error) {
	buy, err := h.ActivateMediaBuy.Execute(ctx, commands.ActivateMediaBuyCommand{
		MediaBuyID: mediaBuyID,
		Actor:      actorID,
	})
	if err != nil {
		return httptransport.MediaBuyResponse{}, err
	}
	return httptransport.MediaBuyResponse{MediaBuy: mapMediaBuy(buy)}, nil
}

func (h Handler) PauseMediaBuyHandler(ctx context.Context, actorID string, mediaBuyID string, reason string) (httptransport.MediaBuyResponse, error) {
	buy, err := h.PauseMediaBuy.Execute(ctx, commands.ChangeDeliveryCommand{
		MediaBuyID: mediaBuyID,
		Actor:      actorID,
		Reason:     reason,
	})
	if err != nil {
		return httptransport.MediaBuyResponse{}, err
	}
	return httptransport.MediaBuyResponse{MediaBuy: mapMediaBuy(buy)}, nil
}

func (h Handler) ResumeMediaBuyHandler(ctx context.Context, actorID string, mediaBuyID string, reason string) (httptransport.MediaBuyResponse, error) {
	buy, err := h.ResumeMediaBuy.Execute(ctx, commands.ChangeDeliveryCommand{
		MediaBuyID: mediaBuyID,
		Actor:      actorID,
		Reason:     reason,
	})
	if err != nil {
		return httptransport.MediaBuyResponse{}, err
	}
	return httptransport.MediaBuyResponse{MediaBuy: mapMediaBuy(buy)}, nil
}

func (h Handler) GetMediaBuyHandler(ctx context.Context, mediaBuyID string) (httptransport.GetMediaBuyResponse, error) {
	view, err := h.GetMediaBuy.Execute(ctx, mediaBuyID)
	if err != nil {
		return httptransport.GetMediaBuyResponse{}, err
	}

	packages := make([]httptransport.PackageDTO, 0, len(view.Packages))
	for _, pkg := range view.Packages {
		packages = append(packages, httptransport.PackageDTO{
			PackageID:  pkg.PackageID,
			ProductRef: pkg.ProductRef,
			Budget:     pkg.Budget,
			FormatIDs:  pkg.FormatIDs,
			SignalRef:  pkg.SignalRef,
		})
	}
	creatives := make([]httptransport.CreativeDTO, 0, len(view.Creatives))
	for _, asset := range view.Creatives {
		creatives = append(creatives, httptransport.CreativeDTO{
			AssetID:   asset.AssetID,
			PackageID: asset.PackageID,
			FormatID:  asset.FormatID,
			AssetURI:  asset.AssetURI,
		})
	}
	audit := make([]httptransport.AuditEntryDTO, 0, len(view.Audit))
	for _, entry := range view.Audit {
		audit = append(audit, httptransport.AuditEntryDTO{
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			Actor:      entry.Actor,
			Reason:     entry.Reason,
			CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return httptransport.GetMediaBuyResponse{
		MediaBuy:  mapMediaBuy(view.Buy),
		Packages:  packages,
		Creatives: creatives,
		Audit:     audit,
	}, nil
}

func (h Handler) ListMediaBuysHandler(ctx context.Context, tenantID string, status string) (httptransport.ListMediaBuysResponse, error) {
	items, err := h.ListMediaBuys.Execute(ctx, queries.ListMediaBuysQuery{
		TenantID: tenantID,
		Status:   status,
	})
	if err != nil {
		return httptransport.ListMediaBuysResponse{}, err
	}
	result := make([]httptransport.MediaBuyDTO, 0, len(items))
	for _, item := range items {
		result = append(result, mapMediaBuy(item))
	}
	return httptransport.ListMediaBuysResponse{Items: result}, nil
}

func (h Handler) GetDeliveryHandler(ctx context.Context, mediaBuyID string, asOf string) (httptransport.DeliveryResponse, error) {
	var asOfTime time.Time
	if asOf != "" {
		parsed, err := time.Parse(time.RFC3339, asOf)
		if err != nil {
			return httptransport.DeliveryResponse{}, domainerrors.ErrInvalidBuyInput
		}
		asOfTime = parsed
	}
	report, err := h.GetDelivery.Execute(ctx, mediaBuyID, asOfTime)
	if err != nil {
		return httptransport.DeliveryResponse{}, err
	}
	return httptransport.DeliveryResponse{
		MediaBuyID:  report.MediaBuyID,
		AsOf:        report.AsOf.UTC().Format(time.RFC3339),
		Impressions: report.Impressions,
		Spend:       report.Spend,
		Currency:    report.Currency,
	}, nil
}

func mapMediaBuy(buy entities.MediaBuy) httptransport.MediaBuyDTO {
	return httptransport.MediaBuyDTO{
		MediaBuyID:     buy.MediaBuyID,
		TenantID:       buy.TenantID,
		PrincipalID:    buy.PrincipalID,
		BuyerRef:       buy.BuyerRef,
		ContextID:      buy.ContextID,
		Status:         string(buy.Status),
		FailureReason:  buy.FailureReason,
		ApprovalState:  string(buy.ApprovalState),
		BackendOrderID: buy.BackendOrderID,
		BudgetTotal:    buy.BudgetTotal,
		FlightStart:    buy.FlightStart.UTC().Format(time.RFC3339),
		FlightEnd:      buy.FlightEnd.UTC().Format(time.RFC3339),
		CreatedAt:      buy.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      buy.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
