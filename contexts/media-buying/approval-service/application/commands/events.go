package commands

import (
	"encoding/json"
	"time"

	"adbroker/contexts/media-buying/approval-service/domain/entities"
	"adbroker/contexts/media-buying/approval-service/ports"
)

const (
	EventTaskApproved = "task.approved"
	EventTaskRejected = "task.rejected"
	EventTaskExpired  = "task.expired"
)

func taskEventType(status entities.TaskStatus) string {
	switch status {
	case entities.TaskStatusApproved:
		return EventTaskApproved
	case entities.TaskStatusRejected:
		return EventTaskRejected
	default:
		return EventTaskExpired
	}
}

func taskEnvelope(eventID string, eventType string, task entities.Task, occurredAt time.Time) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(map[string]any{
		"task_id":     task.TaskID,
		"tenant_id":   task.TenantID,
		"task_type":   string(task.Type),
		"subject_ref": task.SubjectRef,
		"status":      string(task.Status),
		"decided_by":  task.DecidedBy,
		"reason":      task.DecisionReason,
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "approval-service",
		TenantID:         task.TenantID,
		SchemaVersion:    1,
		PartitionKeyPath: "subject_ref",
		PartitionKey:     task.SubjectRef,
		Data:             payload,
	}, nil
}

// TaskEnvelope exposes the envelope builder to worker code inside the
// service without exporting the wire layout twice.
func TaskEnvelope(eventID string, task entities.Task, occurredAt time.Time) (ports.EventEnvelope, error) {
	return taskEnvelope(eventID, taskEventType(task.Status), task, occurredAt)
}
