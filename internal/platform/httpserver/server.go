package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	approvalservice "adbroker/contexts/media-buying/approval-service"
	contextservice "adbroker/contexts/media-buying/context-service"
	mediabuyservice "adbroker/contexts/media-buying/mediabuy-service"
	signalservice "adbroker/contexts/media-buying/signal-service"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "adbroker/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	approval approvalservice.Module
	mediabuy mediabuyservice.Module
	signal   signalservice.Module
	contexts contextservice.Module
}

func New(
	approvalModule approvalservice.Module,
	mediabuyModule mediabuyservice.Module,
	signalModule signalservice.Module,
	contextModule contextservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		approval: approvalModule,
		mediabuy: mediabuyModule,
		signal:   signalModule,
		contexts: contextModule,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/media-buys", s.handleCreateMediaBuy)
	s.mux.HandleFunc("GET /v1/media-buys", s.handleListMediaBuys)
	s.mux.HandleFunc("GET /v1/media-buys/{media_buy_id}", s.handleGetMediaBuy)
	s.mux.HandleFunc("POST /v1/media-buys/{media_buy_id}/creatives", s.handleAttachCreative)
	s.mux.HandleFunc("POST /v1/media-buys/{media_buy_id}/activate", s.handleActivateMediaBuy)
	s.mux.HandleFunc("POST /v1/media-buys/{media_buy_id}/pause", s.handlePauseMediaBuy)
	s.mux.HandleFunc("POST /v1/media-buys/{media_buy_id}/resume", s.handleResumeMediaBuy)
	s.mux.HandleFunc("GET /v1/media-buys/{media_buy_id}/delivery", s.handleGetDelivery)

	s.mux.HandleFunc("POST /v1/tasks", s.handleCreateTask)
	s.mux.HandleFunc("GET /v1/tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /v1/tasks/{task_id}", s.handleGetTask)
	s.mux.HandleFunc("POST /v1/tasks/{task_id}/resolve", s.handleResolveTask)

	s.mux.HandleFunc("GET /v1/activations/{activation_id}", s.handleGetActivation)
	s.mux.HandleFunc("POST /v1/activations/{activation_id}/webhook", s.handleActivationWebhook)
	s.mux.HandleFunc("GET /v1/media-buys/{media_buy_id}/activations", s.handleListActivations)

	s.mux.HandleFunc("POST /v1/contexts/messages", s.handleAppendContextMessage)
	s.mux.HandleFunc("GET /v1/contexts/{context_id}", s.handleReadContext)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func requireTenant(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
}

func requirePrincipal(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Principal-Id"))
}

func resolveActor(r *http.Request) string {
	actor := strings.TrimSpace(r.Header.Get("X-Principal-Id"))
	if actor == "" {
		actor = strings.TrimSpace(r.Header.Get("X-Actor-Id"))
	}
	return actor
}
