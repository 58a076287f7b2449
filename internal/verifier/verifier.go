package verifier

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	"github.com/angeloszaimis/proxy-sentinel/internal/egress"
	"github.com/angeloszaimis/proxy-sentinel/internal/liveness"
	"github.com/angeloszaimis/proxy-sentinel/internal/proxy"
)

const DefaultProxyHost = "127.0.0.1"

// Verifier checks one target at a time. It is safe for concurrent use as
// long as its Resolver and Oracle are.
type Verifier struct {
	resolver  egress.Resolver
	oracle    liveness.Oracle
	proxyHost string
	logger    *slog.Logger
}

// New creates a verifier that reaches proxies at proxyHost:<target port>.
func New(resolver egress.Resolver, oracle liveness.Oracle, proxyHost string, logger *slog.Logger) *Verifier {
	if proxyHost == "" {
		proxyHost = DefaultProxyHost
	}

	return &Verifier{
		resolver:  resolver,
		oracle:    oracle,
		proxyHost: proxyHost,
		logger:    logger,
	}
}

// Verify runs the liveness, host identity, proxy identity and comparison
// steps in order and stops at the first one that decides the verdict.
func (v *Verifier) Verify(ctx context.Context, target proxy.Target) proxy.Verdict {
	log := v.logger.With(
		slog.String("proxy", target.Description),
		slog.Int("port", target.Port),
		slog.String("container", target.ContainerName))

	log.Info("Checking proxy")

	if !v.oracle.IsRunning(ctx, target.ContainerName) {
		log.Warn("Container is not running")
		return proxy.Down(target)
	}

	host := v.resolver.Resolve(ctx, "")
	if !host.OK() {
		log.Error("Failed to get host IP")
		return proxy.Error(target)
	}

	via := v.resolver.Resolve(ctx, v.Address(target))
	if !via.OK() {
		log.Warn("Failed to get proxy IP")
		return proxy.Down(target)
	}

	if host.IP == via.IP {
		log.Error("Proxy is NOT working correctly, egress IP matches host",
			slog.String("ip", via.IP))
		return proxy.Error(target)
	}

	log.Info("Proxy is working correctly",
		slog.String("ip", via.IP),
		slog.Duration("latency", via.Latency))
	return proxy.OK(target, via.IP, via.Latency.Milliseconds())
}

// Address returns the host:port the verifier dials for target.
func (v *Verifier) Address(target proxy.Target) string {
	return net.JoinHostPort(v.proxyHost, strconv.Itoa(target.Port))
}
