package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/angeloszaimis/proxy-sentinel/internal/proxy"
)

const maxLatencySamples = 1000

type Metrics struct {
	mutex       sync.RWMutex
	statuses    map[string]map[proxy.Status]int64
	lastStatus  map[string]proxy.Status
	latencies   map[string][]time.Duration
	cycles      int64
	lastCycle   time.Duration
	lastWorking int
	lastTotal   int
	startTime   time.Time
}

type Snapshot struct {
	Uptime            time.Duration           `json:"uptime"`
	Cycles            int64                   `json:"cycles"`
	LastCycleDuration time.Duration           `json:"last_cycle_duration"`
	LastWorking       int                     `json:"last_working"`
	LastTotal         int                     `json:"last_total"`
	Proxies           map[string]ProxyMetrics `json:"proxies"`
}

type ProxyMetrics struct {
	Checks     int64         `json:"checks"`
	OK         int64         `json:"ok"`
	Down       int64         `json:"down"`
	Error      int64         `json:"error"`
	LastStatus proxy.Status  `json:"last_status"`
	AvgLatency time.Duration `json:"avg_latency"`
	P50Latency time.Duration `json:"p50_latency"`
	P95Latency time.Duration `json:"p95_latency"`
	P99Latency time.Duration `json:"p99_latency"`
}

// RecordVerdict counts one verdict for the proxy. Latency is sampled only
// for ok verdicts.
func (m *Metrics) RecordVerdict(name string, status proxy.Status, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.statuses[name] == nil {
		m.statuses[name] = make(map[proxy.Status]int64)
	}
	m.statuses[name][status]++
	m.lastStatus[name] = status

	if status != proxy.StatusOK {
		return
	}

	m.latencies[name] = append(m.latencies[name], latency)
	if len(m.latencies[name]) > maxLatencySamples {
		m.latencies[name] = m.latencies[name][1:]
	}
}

func (m *Metrics) RecordCycle(duration time.Duration, working, total int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cycles++
	m.lastCycle = duration
	m.lastWorking = working
	m.lastTotal = total
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:            time.Since(m.startTime),
		Cycles:            m.cycles,
		LastCycleDuration: m.lastCycle,
		LastWorking:       m.lastWorking,
		LastTotal:         m.lastTotal,
		Proxies:           make(map[string]ProxyMetrics, len(m.statuses)),
	}

	for name, counts := range m.statuses {
		pm := ProxyMetrics{
			OK:         counts[proxy.StatusOK],
			Down:       counts[proxy.StatusDown],
			Error:      counts[proxy.StatusError],
			LastStatus: m.lastStatus[name],
		}
		pm.Checks = pm.OK + pm.Down + pm.Error

		durations := m.latencies[name]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			pm.AvgLatency = average(sorted)
			pm.P50Latency = percentile(sorted, 0.50)
			pm.P95Latency = percentile(sorted, 0.95)
			pm.P99Latency = percentile(sorted, 0.99)
		}

		snap.Proxies[name] = pm
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		statuses:   make(map[string]map[proxy.Status]int64),
		lastStatus: make(map[string]proxy.Status),
		latencies:  make(map[string][]time.Duration),
		startTime:  time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
