package proxy

import (
	"encoding/json"
	"fmt"
)

// Status is the externally visible outcome of checking one proxy.
type Status string

const (
	StatusOK    Status = "ok"
	StatusDown  Status = "down"
	StatusError Status = "error"
)

const (
	MsgNoTargets = "No proxy configurations found"
	MsgNoHostIP  = "Could not determine host IP"
)

// Target identifies one SOCKS5 proxy reachable on a local port and backed
// by a named container.
type Target struct {
	Port          int    `json:"port"`
	ContainerName string `json:"containerName"`
	Description   string `json:"description"`
}

// Verdict is a Target enriched with the outcome of one check.
// IP and Latency are only set when Status is StatusOK.
type Verdict struct {
	Target
	Status  Status `json:"status"`
	IP      string `json:"ip,omitempty"`
	Latency int64  `json:"latency,omitempty"`
}

// MarshalJSON writes ip and latency for working verdicts only, including a
// zero latency.
func (v Verdict) MarshalJSON() ([]byte, error) {
	type wire struct {
		Target
		Status  Status `json:"status"`
		IP      string `json:"ip,omitempty"`
		Latency *int64 `json:"latency,omitempty"`
	}

	w := wire{Target: v.Target, Status: v.Status}
	if v.Status == StatusOK {
		latency := v.Latency
		w.IP = v.IP
		w.Latency = &latency
	}
	return json.Marshal(w)
}

// HealthSummary aggregates the verdicts of one completed cycle.
type HealthSummary struct {
	Summary string    `json:"summary"`
	Working []Verdict `json:"working"`
	Failed  []Verdict `json:"failed"`
}

// Down returns a down verdict for t.
func Down(t Target) Verdict {
	return Verdict{Target: t, Status: StatusDown}
}

// Error returns an error verdict for t.
func Error(t Target) Verdict {
	return Verdict{Target: t, Status: StatusError}
}

// OK returns a working verdict for t carrying the proxy egress IP and the
// latency of the proxied lookup in milliseconds.
func OK(t Target, ip string, latencyMillis int64) Verdict {
	return Verdict{Target: t, Status: StatusOK, IP: ip, Latency: latencyMillis}
}

// Empty returns the summary served before any cycle has completed.
func Empty() HealthSummary {
	return HealthSummary{
		Working: []Verdict{},
		Failed:  []Verdict{},
	}
}

// Aborted returns a summary for a cycle that stopped before checking any
// target. msg explains why.
func Aborted(msg string) HealthSummary {
	s := Empty()
	s.Summary = msg
	return s
}

// NewSummary partitions verdicts into working and failed, keeping the
// relative order of each partition, and counts them against total.
func NewSummary(verdicts []Verdict, total int) HealthSummary {
	s := Empty()
	for _, v := range verdicts {
		if v.Status == StatusOK {
			s.Working = append(s.Working, v)
		} else {
			s.Failed = append(s.Failed, v)
		}
	}
	s.Summary = fmt.Sprintf("%d/%d proxies working", len(s.Working), total)
	return s
}
