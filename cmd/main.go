package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angeloszaimis/proxy-sentinel/config"
	"github.com/angeloszaimis/proxy-sentinel/internal/discovery"
	"github.com/angeloszaimis/proxy-sentinel/internal/egress"
	"github.com/angeloszaimis/proxy-sentinel/internal/handler"
	"github.com/angeloszaimis/proxy-sentinel/internal/healthcheck"
	"github.com/angeloszaimis/proxy-sentinel/internal/httpserver"
	"github.com/angeloszaimis/proxy-sentinel/internal/liveness"
	"github.com/angeloszaimis/proxy-sentinel/internal/metrics"
	"github.com/angeloszaimis/proxy-sentinel/internal/verifier"
	"github.com/angeloszaimis/proxy-sentinel/pkg/logger"
)

type app struct {
	orchestrator *healthcheck.Orchestrator
	collector    *metrics.Collector
	stream       *handler.Stream
	server       *httpserver.Server
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, log)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	a.collector.Start(ctx)

	// The first cycle completes before the listener accepts requests.
	a.orchestrator.Start(ctx)
	defer a.orchestrator.Stop()

	srvErrCh := make(chan error, 1)

	go func() {
		log.Info("Proxy health sentinel listening", slog.String("addr", a.server.Addr()))
		srvErrCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		a.orchestrator.Stop()
		if err := a.server.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting proxy health sentinel", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// newApp wires every component from cfg without starting anything.
func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	discoverer := discovery.NewComposeDiscoverer(cfg.Discovery.ComposeFile, cfg.Discovery.ContainerPort, log)
	resolver := egress.NewHTTPResolver(cfg.HealthCheck.IPEndpoint, cfg.HealthCheck.TimeoutDuration(), log)
	oracle := liveness.NewDockerOracle(cfg.HealthCheck.LivenessTimeoutDuration(), log)
	proxyVerifier := verifier.New(resolver, oracle, cfg.Discovery.ProxyHost, log)
	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)

	orchestrator := healthcheck.New(
		discoverer,
		resolver,
		proxyVerifier,
		collector,
		cfg.HealthCheck.IntervalDuration(),
		log,
	)

	status := handler.NewStatusHandler(log, orchestrator)
	stream := handler.NewStream(log, orchestrator)
	orchestrator.OnSummary(stream.Publish)

	srv, err := httpserver.New(
		cfg.Server.Address,
		setupRouter(status, stream, collector),
		cfg.Server.WriteTimeoutDuration(),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		orchestrator: orchestrator,
		collector:    collector,
		stream:       stream,
		server:       srv,
	}, nil
}
