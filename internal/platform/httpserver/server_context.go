package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	contexterrors "adbroker/contexts/media-buying/context-service/domain/errors"
	contexthttp "adbroker/contexts/media-buying/context-service/transport/http"
)

func writeContextError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, contexthttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeContextDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contexterrors.ErrContextNotFound):
		writeContextError(w, http.StatusNotFound, "context_not_found", err.Error())
	case errors.Is(err, contexterrors.ErrInvalidRequest):
		writeContextError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeContextError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleAppendContextMessage(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(r)
	principalID := requirePrincipal(r)
	if tenantID == "" || principalID == "" {
		writeContextError(w, http.StatusUnauthorized, "identity_required", "X-Tenant-Id and X-Principal-Id headers are required")
		return
	}
	var req contexthttp.AppendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeContextError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.contexts.Handler.AppendHandler(r.Context(), tenantID, principalID, req)
	if err != nil {
		writeContextDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReadContext(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(r)
	if tenantID == "" {
		writeContextError(w, http.StatusUnauthorized, "tenant_required", "X-Tenant-Id header is required")
		return
	}
	resp, err := s.contexts.Handler.ReadContextHandler(r.Context(), tenantID, r.PathValue("context_id"))
	if err != nil {
		writeContextDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
