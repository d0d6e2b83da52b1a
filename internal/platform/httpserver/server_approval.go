package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	approvalerrors "adbroker/contexts/media-buying/approval-service/domain/errors"
	approvalhttp "adbroker/contexts/media-buying/approval-service/transport/http"
)

func writeApprovalError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, approvalhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeApprovalDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, approvalerrors.ErrTaskNotFound):
		writeApprovalError(w, http.StatusNotFound, "task_not_found", err.Error())
	case errors.Is(err, approvalerrors.ErrInvalidTaskInput):
		writeApprovalError(w, http.StatusBadRequest, "invalid_task", err.Error())
	case errors.Is(err, approvalerrors.ErrInvalidDecision):
		writeApprovalError(w, http.StatusBadRequest, "invalid_decision", err.Error())
	case errors.Is(err, approvalerrors.ErrVersionConflict):
		writeApprovalError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, approvalerrors.ErrTaskTerminal):
		writeApprovalError(w, http.StatusConflict, "task_already_resolved", err.Error())
	default:
		writeApprovalError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(r)
	if tenantID == "" {
		writeApprovalError(w, http.StatusUnauthorized, "tenant_required", "X-Tenant-Id header is required")
		return
	}
	var req approvalhttp.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeApprovalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.approval.Handler.CreateTaskHandler(r.Context(), tenantID, req)
	if err != nil {
		writeApprovalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(r)
	if tenantID == "" {
		writeApprovalError(w, http.StatusUnauthorized, "tenant_required", "X-Tenant-Id header is required")
		return
	}
	resp, err := s.approval.Handler.ListTasksHandler(r.Context(), tenantID, r.URL.Query().Get("status"))
	if err != nil {
		writeApprovalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	resp, err := s.approval.Handler.GetTaskHandler(r.Context(), r.PathValue("task_id"))
	if err != nil {
		writeApprovalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveTask(w http.ResponseWriter, r *http.Request) {
	actorID := resolveActor(r)
	if actorID == "" {
		writeApprovalError(w, http.StatusUnauthorized, "actor_required", "X-Principal-Id header is required")
		return
	}
	var req approvalhttp.ResolveTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeApprovalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.approval.Handler.ResolveTaskHandler(r.Context(), actorID, r.PathValue("task_id"), req)
	if err != nil {
		writeApprovalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
