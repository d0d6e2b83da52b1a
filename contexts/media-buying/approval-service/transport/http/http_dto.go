package httptransport

type TaskDTO struct {
	TaskID         string `json:"task_id"`
	TenantID       string `json:"tenant_id"`
	TaskType       string `json:"task_type"`
	SubjectRef     string `json:"subject_ref"`
	Status         string `json:"status"`
	Version        int    `json:"version"`
	DueDate        string `json:"due_date"`
	DecidedBy      string `json:"decided_by,omitempty"`
	DecisionReason string `json:"decision_reason,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type CreateTaskRequest struct {
	TaskType   string `json:"task_type"`
	SubjectRef string `json:"subject_ref"`
	DueDate    string `json:"due_date"`
}

type CreateTaskResponse struct {
	Task TaskDTO `json:"task"`
}

type ResolveTaskRequest struct {
	ExpectedVersion int    `json:"expected_version"`
	Decision        string `json:"decision"`
	Reason          string `json:"reason,omitempty"`
}

type ResolveTaskResponse struct {
	Task TaskDTO `json:"task"`
}

type GetTaskResponse struct {
	Task TaskDTO `json:"task"`
}

type ListTasksResponse struct {
	Items []TaskDTO `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
