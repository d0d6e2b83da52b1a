package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	mediabuyerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
	mediabuyhttp "adbroker/contexts/media-buying/mediabuy-service/transport/http"
)

func writeMediaBuyError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, mediabuyhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeMediaBuyDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mediabuyerrors.ErrMediaBuyNotFound):
		writeMediaBuyError(w, http.StatusNotFound, "media_buy_not_found", err.Error())
	case errors.Is(err, mediabuyerrors.ErrPackageNotFound):
		writeMediaBuyError(w, http.StatusNotFound, "package_not_found", err.Error())
	case errors.Is(err, mediabuyerrors.ErrInvalidBuyInput):
		writeMediaBuyError(w, http.StatusBadRequest, "invalid_media_buy", err.Error())
	case errors.Is(err, mediabuyerrors.ErrStaleTransition):
		writeMediaBuyError(w, http.StatusConflict, "stale_transition", err.Error())
	case errors.Is(err, mediabuyerrors.ErrNotApproved):
		writeMediaBuyError(w, http.StatusConflict, "not_approved", err.Error())
	case errors.Is(err, mediabuyerrors.ErrSignalsNotReady):
		writeMediaBuyError(w, http.StatusConflict, "signals_not_ready", err.Error())
	case errors.Is(err, mediabuyerrors.ErrAdapterRetryable):
		writeMediaBuyError(w, http.StatusServiceUnavailable, "adapter_retryable", err.Error())
	case errors.Is(err, mediabuyerrors.ErrAdapterFatal):
		writeMediaBuyError(w, http.StatusBadGateway, "adapter_fatal", err.Error())
	default:
		writeMediaBuyError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func requireMediaBuyTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := requireTenant(r)
	if tenantID == "" {
		writeMediaBuyError(w, http.StatusUnauthorized, "tenant_required", "X-Tenant-Id header is required")
		return "", false
	}
	return tenantID, true
}

func requireMediaBuyActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID := resolveActor(r)
	if actorID == "" {
		writeMediaBuyError(w, http.StatusUnauthorized, "actor_required", "X-Principal-Id header is required")
		return "", false
	}
	return actorID, true
}

func (s *Server) handleCreateMediaBuy(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireMediaBuyTenant(w, r)
	if !ok {
		return
	}
	principalID := requirePrincipal(r)
	if principalID == "" {
		writeMediaBuyError(w, http.StatusUnauthorized, "principal_required", "X-Principal-Id header is required")
		return
	}

	var req mediabuyhttp.CreateMediaBuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMediaBuyError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.mediabuy.Handler.CreateMediaBuyHandler(r.Context(), tenantID, principalID, req)
	if err != nil {
		writeMediaBuyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListMediaBuys(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireMediaBuyTenant(w, r)
	if !ok {
		return
	}
	resp, err := s.mediabuy.Handler.ListMediaBuysHandler(r.Context(), tenantID, r.URL.Query().Get("status"))
	if err != nil {
		writeMediaBuyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetMediaBuy(w http.ResponseWriter, r *http.Request) {
	resp, err := s.mediabuy.Handler.GetMediaBuyHandler(r.Context(), r.PathValue("media_buy_id"))
	if err != nil {
		writeMediaBuyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAttachCreative(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireMediaBuyActor(w, r)
	if !ok {
		return
	}
	var req mediabuyhttp.AttachCreativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMediaBuyError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.mediabuy.Handler.AttachCreativeHandler(r.Context(), actorID, r.PathValue("media_buy_id"), req)
	if err != nil {
		writeMediaBuyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActivateMediaBuy(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireMediaBuyActor(w, r)
	if !ok {
		return
	}
	resp, err := s.mediabuy.Handler.ActivateMediaBuyHandler(r.Context(), actorID, r.PathValue("media_buy_id"))
	if err != nil {
		writeMediaBuyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type deliveryChangeRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handlePauseMediaBuy(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireMediaBuyActor(w, r)
	if !ok {
		return
	}
	var req deliveryChangeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	resp, err := s.mediabuy.Handler.PauseMediaBuyHandler(r.Context(), actorID, r.PathValue("media_buy_id"), req.Reason)
	if err != nil {
		writeMediaBuyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResumeMediaBuy(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireMediaBuyActor(w, r)
	if !ok {
		return
	}
	var req deliveryChangeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	resp, err := s.mediabuy.Handler.ResumeMediaBuyHandler(r.Context(), actorID, r.PathValue("media_buy_id"), req.Reason)
	if err != nil {
		writeMediaBuyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	resp, err := s.mediabuy.Handler.GetDeliveryHandler(r.Context(), r.PathValue("media_buy_id"), r.URL.Query().Get("as_of"))
	if err != nil {
		writeMediaBuyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
