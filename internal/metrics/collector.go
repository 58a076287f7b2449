package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/proxy-sentinel/internal/proxy"
)

type EventType string

const (
	EventVerdictRecorded EventType = "verdict_recorded"
	EventCycleCompleted  EventType = "cycle_completed"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time

	// Verdict events.
	Proxy   string
	Status  proxy.Status
	Latency time.Duration

	// Cycle events.
	Duration time.Duration
	Working  int
	Total    int
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit sends event without blocking. It is dropped if the buffer is full.
func (c *Collector) Emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Debug("Metrics buffer full, dropping event", slog.String("type", string(event.Type)))
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventVerdictRecorded:
		c.metrics.RecordVerdict(event.Proxy, event.Status, event.Latency)

	case EventCycleCompleted:
		c.metrics.RecordCycle(event.Duration, event.Working, event.Total)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
