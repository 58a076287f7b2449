// Package metrics collects in-memory statistics about proxy check cycles.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Check counts per proxy, split by verdict status
//   - The last verdict status of each proxy
//   - Proxied lookup latency with percentile calculations (P50, P95, P99)
//   - Completed cycle count, last cycle duration and working/total counts
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the check cycle. Events are sent via a buffered channel; callers
// drop events rather than wait when the buffer is full.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.EventChannel() <- metrics.MetricEvent{
//		Type:    metrics.EventVerdictRecorded,
//		Proxy:   "proxy-a",
//		Status:  proxy.StatusOK,
//		Latency: 150 * time.Millisecond,
//	}
//
//	snapshot := collector.Snapshot()
//
// Nothing is persisted; statistics start from zero on every process start.
package metrics
