package main

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/angeloszaimis/proxy-sentinel/internal/handler"
	"github.com/angeloszaimis/proxy-sentinel/internal/metrics"
)

func setupRouter(status *handler.StatusHandler, stream *handler.Stream, metricsCollector *metrics.Collector) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", status.Status)
	mux.HandleFunc("POST /check", status.Check)
	mux.HandleFunc("GET /metrics", metricsCollector.Handler())
	mux.Handle("GET /ws", stream)

	return cors.AllowAll().Handler(mux)
}
