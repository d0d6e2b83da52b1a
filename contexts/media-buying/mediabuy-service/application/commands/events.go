package commands

import (
	"encoding/json"
	"time"

	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

const EventBuyStatusChanged = "media_buy.status_changed"

// StatusChangedEnvelope records one audit-visible transition for downstream
// consumers (reporting, buyer notifications).
func StatusChangedEnvelope(eventID string, buy entities.MediaBuy, from entities.BuyStatus, occurredAt time.Time) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(map[string]any{
		"media_buy_id":   buy.MediaBuyID,
		"tenant_id":      buy.TenantID,
		"buyer_ref":      buy.BuyerRef,
		"from_status":    string(from),
		"to_status":      string(buy.Status),
		"failure_reason": buy.FailureReason,
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        EventBuyStatusChanged,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "mediabuy-service",
		TenantID:         buy.TenantID,
		SchemaVersion:    1,
		PartitionKeyPath: "media_buy_id",
		PartitionKey:     buy.MediaBuyID,
		Data:             payload,
	}, nil
}
