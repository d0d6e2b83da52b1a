package commands

import (
	"encoding/json"
	"time"

	"adbroker/contexts/media-buying/signal-service/domain/entities"
	"adbroker/contexts/media-buying/signal-service/ports"
)

const (
	EventActivationActivated = "signal_activation.activated"
	EventActivationFailed    = "signal_activation.failed"
	EventActivationExpired   = "signal_activation.expired"
)

func activationInterval(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}

// ActivationEnvelope builds the terminal-transition event consumed by the
// media-buy state machine.
func ActivationEnvelope(eventID string, activation entities.SignalActivation, occurredAt time.Time) (ports.EventEnvelope, error) {
	eventType := EventActivationActivated
	switch activation.Status {
	case entities.ActivationStatusFailed:
		eventType = EventActivationFailed
	case entities.ActivationStatusExpired:
		eventType = EventActivationExpired
	}

	payload, err := json.Marshal(map[string]any{
		"activation_id": activation.ActivationID,
		"tenant_id":     activation.TenantID,
		"media_buy_id":  activation.MediaBuyID,
		"package_id":    activation.PackageID,
		"signal_ref":    activation.SignalRef,
		"status":        string(activation.Status),
		"reason":        activation.FailureReason,
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "signal-service",
		TenantID:         activation.TenantID,
		SchemaVersion:    1,
		PartitionKeyPath: "media_buy_id",
		PartitionKey:     activation.MediaBuyID,
		Data:             payload,
	}, nil
}
