package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	signalerrors "adbroker/contexts/media-buying/signal-service/domain/errors"
	signalhttp "adbroker/contexts/media-buying/signal-service/transport/http"
)

func writeSignalError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, signalhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeSignalDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, signalerrors.ErrActivationNotFound):
		writeSignalError(w, http.StatusNotFound, "activation_not_found", err.Error())
	case errors.Is(err, signalerrors.ErrInvalidActivationInput):
		writeSignalError(w, http.StatusBadRequest, "invalid_activation", err.Error())
	case errors.Is(err, signalerrors.ErrActivationTerminal):
		writeSignalError(w, http.StatusConflict, "activation_already_terminal", err.Error())
	case errors.Is(err, signalerrors.ErrPollCountConflict):
		writeSignalError(w, http.StatusConflict, "poll_conflict", err.Error())
	default:
		writeSignalError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleActivationWebhook(w http.ResponseWriter, r *http.Request) {
	var req signalhttp.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSignalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.signal.Handler.WebhookHandler(r.Context(), r.PathValue("activation_id"), req)
	if err != nil {
		writeSignalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetActivation(w http.ResponseWriter, r *http.Request) {
	resp, err := s.signal.Handler.GetActivationHandler(r.Context(), r.PathValue("activation_id"))
	if err != nil {
		writeSignalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListActivations(w http.ResponseWriter, r *http.Request) {
	resp, err := s.signal.Handler.ListActivationsHandler(r.Context(), r.PathValue("media_buy_id"))
	if err != nil {
		writeSignalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
