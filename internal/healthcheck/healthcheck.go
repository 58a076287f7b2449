package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angeloszaimis/proxy-sentinel/internal/discovery"
	"github.com/angeloszaimis/proxy-sentinel/internal/egress"
	"github.com/angeloszaimis/proxy-sentinel/internal/metrics"
	"github.com/angeloszaimis/proxy-sentinel/internal/proxy"
)

const (
	DefaultInterval = 60 * time.Second

	cycleKey = "cycle"
)

// ErrCheckFailed is returned to callers of a cycle that failed unexpectedly.
var ErrCheckFailed = errors.New("health check failed")

// Verifier produces the verdict for one target.
type Verifier interface {
	Verify(ctx context.Context, target proxy.Target) proxy.Verdict
}

// Orchestrator owns the latest summary, the in-flight cycle and the
// periodic schedule.
type Orchestrator struct {
	discoverer discovery.Discoverer
	resolver   egress.Resolver
	verifier   Verifier
	collector  *metrics.Collector
	interval   time.Duration
	logger     *slog.Logger

	group    singleflight.Group
	inFlight atomic.Bool

	mutex     sync.RWMutex
	latest    proxy.HealthSummary
	observers []func(proxy.HealthSummary)

	timerMutex sync.Mutex
	timer      *time.Timer
	stopped    bool
}

// New creates an orchestrator. collector may be nil.
func New(
	discoverer discovery.Discoverer,
	resolver egress.Resolver,
	verifier Verifier,
	collector *metrics.Collector,
	interval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Orchestrator{
		discoverer: discoverer,
		resolver:   resolver,
		verifier:   verifier,
		collector:  collector,
		interval:   interval,
		logger:     logger,
		latest:     proxy.Empty(),
	}
}

// Latest returns the summary of the last completed cycle.
func (o *Orchestrator) Latest() proxy.HealthSummary {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.latest
}

// InFlight reports whether a cycle is currently running.
func (o *Orchestrator) InFlight() bool {
	return o.inFlight.Load()
}

// OnSummary registers fn to be called with every newly completed summary.
func (o *Orchestrator) OnSummary(fn func(proxy.HealthSummary)) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.observers = append(o.observers, fn)
}

// RunCheck discovers targets, resolves the host IP once and verifies every
// target concurrently. It does not touch the orchestrator state.
func (o *Orchestrator) RunCheck(ctx context.Context) proxy.HealthSummary {
	targets := o.discoverer.Discover(ctx)
	if len(targets) == 0 {
		o.logger.Error("CRITICAL: No proxy configurations found")
		return proxy.Aborted(proxy.MsgNoTargets)
	}

	o.logger.Info("=== Starting SOCKS5 proxy health check ===", slog.Int("targets", len(targets)))

	host := o.resolver.Resolve(ctx, "")
	if !host.OK() {
		o.logger.Error("CRITICAL: Cannot determine host IP - aborting health check")
		return proxy.Aborted(proxy.MsgNoHostIP)
	}
	o.logger.Info("Host IP resolved", slog.String("ip", host.IP))

	verdicts := make([]proxy.Verdict, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target proxy.Target) {
			defer wg.Done()
			verdicts[i] = o.verify(ctx, target)
		}(i, target)
	}
	wg.Wait()

	summary := proxy.NewSummary(verdicts, len(targets))

	o.logger.Info("=== Health check complete ===", slog.String("summary", summary.Summary))
	if len(summary.Failed) > 0 {
		o.logger.Warn("Proxies failed health check", slog.Int("failed", len(summary.Failed)))
	} else {
		o.logger.Info("SUCCESS: All proxies passed health check")
	}

	return summary
}

// verify isolates a panicking verification to its own target.
func (o *Orchestrator) verify(ctx context.Context, target proxy.Target) (verdict proxy.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Proxy verification panicked",
				slog.String("container", target.ContainerName),
				slog.Any("panic", r))
			verdict = proxy.Error(target)
		}
	}()

	return o.verifier.Verify(ctx, target)
}

// TriggerCheck starts a cycle, or joins the one in flight, and waits for its
// summary. The cycle is not cancelled when ctx is; the caller just stops
// waiting.
func (o *Orchestrator) TriggerCheck(ctx context.Context) (proxy.HealthSummary, error) {
	if o.InFlight() {
		o.logger.Info("Health check already in progress. Waiting for completion.")
	}

	cycleCtx := context.WithoutCancel(ctx)
	ch := o.group.DoChan(cycleKey, func() (any, error) {
		return o.cycle(cycleCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return proxy.HealthSummary{}, res.Err
		}
		return res.Val.(proxy.HealthSummary), nil
	case <-ctx.Done():
		return proxy.HealthSummary{}, ctx.Err()
	}
}

func (o *Orchestrator) cycle(ctx context.Context) (summary proxy.HealthSummary, err error) {
	o.inFlight.Store(true)
	start := time.Now()
	o.logger.Info("Starting new health check.")

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Health check failed", slog.Any("panic", r))
			err = fmt.Errorf("%w: %v", ErrCheckFailed, r)
		}
		o.inFlight.Store(false)
		o.logger.Info("Health check finished.", slog.Duration("duration", time.Since(start)))
	}()

	summary = o.RunCheck(ctx)
	o.publish(summary, time.Since(start))

	return summary, nil
}

func (o *Orchestrator) publish(summary proxy.HealthSummary, duration time.Duration) {
	o.mutex.Lock()
	o.latest = summary
	observers := make([]func(proxy.HealthSummary), len(o.observers))
	copy(observers, o.observers)
	o.mutex.Unlock()

	for _, fn := range observers {
		fn(summary)
	}

	if o.collector == nil {
		return
	}

	now := time.Now()
	for _, group := range [][]proxy.Verdict{summary.Working, summary.Failed} {
		for _, v := range group {
			o.collector.Emit(metrics.MetricEvent{
				Type:      metrics.EventVerdictRecorded,
				Timestamp: now,
				Proxy:     v.ContainerName,
				Status:    v.Status,
				Latency:   time.Duration(v.Latency) * time.Millisecond,
			})
		}
	}
	o.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventCycleCompleted,
		Timestamp: now,
		Duration:  duration,
		Working:   len(summary.Working),
		Total:     len(summary.Working) + len(summary.Failed),
	})
}
