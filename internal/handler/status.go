package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/angeloszaimis/proxy-sentinel/internal/proxy"
)

const checkFailedMessage = "An error occurred during the health check."

// Checker is the orchestrator as seen by the HTTP surface.
type Checker interface {
	Latest() proxy.HealthSummary
	CheckNow(ctx context.Context) (proxy.HealthSummary, error)
}

type StatusHandler struct {
	logger  *slog.Logger
	checker Checker
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewStatusHandler(logger *slog.Logger, checker Checker) *StatusHandler {
	return &StatusHandler{
		logger:  logger,
		checker: checker,
	}
}

// Status serves the last completed summary.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checker.Latest())
}

// Check runs a check, or joins the one in flight, and serves its summary.
func (h *StatusHandler) Check(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received check request",
		slog.String("from", extractClientIP(r)),
		slog.String("user_agent", r.UserAgent()))

	summary, err := h.checker.CheckNow(r.Context())
	if err != nil {
		h.logger.Error("On-demand health check failed",
			slog.String("from", extractClientIP(r)),
			slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: checkFailedMessage})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
