package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
)

// FakeGateway is a programmable backend for the in-memory module and the
// tests. Default behavior: activation succeeds with a synthetic order id,
// delivery reports zero. Activation is idempotent per buy: a repeat call
// returns the order id placed first.
type FakeGateway struct {
	mu sync.Mutex

	ActivateErr error
	DeliveryErr error
	Deliveries  map[string]entities.DeliveryReport
	orders      map[string]string
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Deliveries: make(map[string]entities.DeliveryReport),
		orders:     make(map[string]string),
	}
}

func (g *FakeGateway) ActivateOrder(_ context.Context, buy entities.MediaBuy, _ []entities.Package) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ActivateErr != nil {
		return "", g.ActivateErr
	}
	if orderID, exists := g.orders[buy.MediaBuyID]; exists {
		return orderID, nil
	}
	orderID := fmt.Sprintf("order-%s-%d", buy.MediaBuyID, len(g.orders)+1)
	g.orders[buy.MediaBuyID] = orderID
	return orderID, nil
}

func (g *FakeGateway) ReportDelivery(_ context.Context, buy entities.MediaBuy, asOf time.Time) (entities.DeliveryReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.DeliveryErr != nil {
		return entities.DeliveryReport{}, g.DeliveryErr
	}
	if report, exists := g.Deliveries[buy.MediaBuyID]; exists {
		report.AsOf = asOf
		return report, nil
	}
	return entities.DeliveryReport{MediaBuyID: buy.MediaBuyID, AsOf: asOf}, nil
}

// SetDelivery scripts the delivery snapshot returned for one buy.
func (g *FakeGateway) SetDelivery(mediaBuyID string, impressions int64, spend float64, currency string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Deliveries[mediaBuyID] = entities.DeliveryReport{
		MediaBuyID:  mediaBuyID,
		Impressions: impressions,
		Spend:       spend,
		Currency:    currency,
	}
}

// FailActivations makes subsequent ActivateOrder calls fail fatally.
func (g *FakeGateway) FailActivations() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ActivateErr = domainerrors.ErrAdapterFatal
}
