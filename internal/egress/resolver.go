package egress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const (
	DefaultEndpoint = "https://api4.ipify.org"
	DefaultTimeout  = 30 * time.Second

	maxBodyBytes = 256
)

// Result is the outcome of one resolution attempt. IP is empty when the
// attempt failed; Latency is only meaningful when it succeeded.
type Result struct {
	IP      string
	Latency time.Duration
}

// OK reports whether the attempt produced an IP.
func (r Result) OK() bool {
	return r.IP != ""
}

// Resolver determines the egress IP for a network path. An empty proxyAddr
// means the direct path of the host.
type Resolver interface {
	Resolve(ctx context.Context, proxyAddr string) Result
}

// HTTPResolver queries an IP-echo endpoint that answers GET requests with the
// caller's address as plain text.
type HTTPResolver struct {
	endpoint string
	timeout  time.Duration
	logger   *slog.Logger
	direct   *http.Client
}

// NewHTTPResolver creates a resolver for endpoint with a per-attempt timeout.
// Zero values fall back to DefaultEndpoint and DefaultTimeout.
func NewHTTPResolver(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPResolver {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPResolver{
		endpoint: endpoint,
		timeout:  timeout,
		logger:   logger,
		direct: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

// Resolve returns the egress IP for the direct path or, when proxyAddr is a
// host:port, for the path through that SOCKS5 proxy.
func (r *HTTPResolver) Resolve(ctx context.Context, proxyAddr string) Result {
	via := proxyAddr
	if via == "" {
		via = "direct"
	}

	client, err := r.clientFor(proxyAddr)
	if err != nil {
		r.logger.Error("Error getting IP",
			slog.String("via", via),
			slog.Any("err", err))
		return Result{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	ip, err := r.fetch(ctx, client)
	if err != nil {
		r.logger.Error("Error getting IP",
			slog.String("via", via),
			slog.Any("err", err))
		return Result{}
	}

	return Result{IP: ip, Latency: time.Since(start)}
}

func (r *HTTPResolver) clientFor(proxyAddr string) (*http.Client, error) {
	if proxyAddr == "" {
		return r.direct, nil
	}

	// Host names are passed to the proxy unresolved, so DNS happens on the
	// proxy side as with socks5h.
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{Timeout: r.timeout})
	if err != nil {
		return nil, fmt.Errorf("create socks5 dialer for %s: %w", proxyAddr, err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support contexts")
	}

	return &http.Client{
		Timeout: r.timeout,
		Transport: &http.Transport{
			DialContext:         contextDialer.DialContext,
			DisableKeepAlives:   true,
			TLSHandshakeTimeout: r.timeout,
		},
	}, nil
}

func (r *HTTPResolver) fetch(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("ip endpoint returned HTTP %d", res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "", errors.New("empty response from ip endpoint")
	}
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("ip endpoint returned %q, not an IP address", ip)
	}

	return ip, nil
}
