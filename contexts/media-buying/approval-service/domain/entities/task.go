package entities

import (
	"strings"
	"time"
)

type TaskStatus string
type TaskType string

const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusApproved TaskStatus = "approved"
	TaskStatusRejected TaskStatus = "rejected"
	TaskStatusExpired  TaskStatus = "expired"

	TaskTypeMediaBuyApproval TaskType = "media_buy_approval"
	TaskTypeCreativeReview   TaskType = "creative_review"
)

// mediaBuySubjectPrefix namespaces subject refs so one task table can gate
// multiple entity kinds.
const mediaBuySubjectPrefix = "media_buy/"

// Task is one durable unit of human-reviewable work. Rows are append-only
// history: terminal tasks are never deleted or reopened, and every
// status-changing write must carry the version it read.
type Task struct {
	TaskID         string
	TenantID       string
	Type           TaskType
	SubjectRef     string
	Status         TaskStatus
	Version        int
	DueDate        time.Time
	DecidedBy      string
	DecisionReason string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DecidedAt      *time.Time
}

func (t Task) Terminal() bool {
	switch t.Status {
	case TaskStatusApproved, TaskStatusRejected, TaskStatusExpired:
		return true
	default:
		return false
	}
}

func (t Task) Overdue(now time.Time) bool {
	return t.Status == TaskStatusPending && t.DueDate.UTC().Before(now.UTC())
}

func IsSupportedTaskType(value TaskType) bool {
	switch value {
	case TaskTypeMediaBuyApproval, TaskTypeCreativeReview:
		return true
	default:
		return false
	}
}

func MediaBuySubject(mediaBuyID string) string {
	return mediaBuySubjectPrefix + strings.TrimSpace(mediaBuyID)
}

func MediaBuyIDFromSubject(subjectRef string) (string, bool) {
	trimmed := strings.TrimSpace(subjectRef)
	if !strings.HasPrefix(trimmed, mediaBuySubjectPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(trimmed, mediaBuySubjectPrefix)
	if id == "" {
		return "", false
	}
	return id, true
}
