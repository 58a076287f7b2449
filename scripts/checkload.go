// Checkload fires concurrent POST /check requests at a running sentinel and
// verifies they were coalesced: every successful response within one burst
// should carry the same summary.
//
// Usage:
//
//	go run checkload.go -url http://localhost:3006/check -concurrency 20 -bursts 3
//	go run checkload.go -url http://localhost:3006/check -out summary.json
//
// Exit codes:
//
//	0 - All bursts coalesced
//	2 - Request failures
//	3 - Divergent summaries within a burst
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

type burstResult struct {
	Burst     int            `json:"burst"`
	Success   int            `json:"success"`
	Failure   int            `json:"failure"`
	Distinct  int            `json:"distinct_bodies"`
	Summaries map[string]int `json:"summaries"`
	P50       float64        `json:"p50_ms"`
	P95       float64        `json:"p95_ms"`
	Max       float64        `json:"max_ms"`
}

type response struct {
	body    string
	summary string
	status  int
	err     error
	dur     time.Duration
}

func main() {
	var (
		url         = flag.String("url", "http://localhost:3006/check", "Check endpoint")
		concurrency = flag.Int("concurrency", 10, "Concurrent requests per burst")
		bursts      = flag.Int("bursts", 1, "Number of bursts, run one after another")
		timeoutSec  = flag.Int("timeout", 120, "Per-request timeout in seconds")
		outJSON     = flag.String("out", "", "Write JSON report to this file (optional)")
	)
	flag.Parse()

	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}

	var results []burstResult
	failed, diverged := false, false

	for b := 0; b < *bursts; b++ {
		res := runBurst(client, *url, *concurrency)
		res.Burst = b + 1
		results = append(results, res)

		fmt.Printf("burst %d: success=%d failure=%d distinct=%d p50=%.0fms p95=%.0fms max=%.0fms\n",
			res.Burst, res.Success, res.Failure, res.Distinct, res.P50, res.P95, res.Max)
		for summary, n := range res.Summaries {
			fmt.Printf("  %q x%d\n", summary, n)
		}

		if res.Failure > 0 {
			failed = true
		}
		if res.Distinct > 1 {
			diverged = true
		}
	}

	if *outJSON != "" {
		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.Encode(results)
		f.Close()
		fmt.Printf("\nWrote JSON report to %s\n", *outJSON)
	}

	switch {
	case diverged:
		os.Exit(3)
	case failed:
		os.Exit(2)
	}
}

func runBurst(client *http.Client, url string, concurrency int) burstResult {
	responses := make([]response, concurrency)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			responses[i] = post(client, url)
		}(i)
	}
	close(start)
	wg.Wait()

	res := burstResult{Summaries: map[string]int{}}
	bodies := map[string]struct{}{}
	var latencies []time.Duration

	for _, r := range responses {
		latencies = append(latencies, r.dur)
		if r.err != nil || r.status != http.StatusOK {
			res.Failure++
			continue
		}
		res.Success++
		bodies[r.body] = struct{}{}
		res.Summaries[r.summary]++
	}
	res.Distinct = len(bodies)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	pick := func(p float64) float64 {
		if len(latencies) == 0 {
			return 0
		}
		return float64(latencies[int(float64(len(latencies)-1)*p)].Milliseconds())
	}
	res.P50, res.P95, res.Max = pick(0.50), pick(0.95), pick(1)

	return res
}

func post(client *http.Client, url string) response {
	begin := time.Now()
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return response{err: err, dur: time.Since(begin)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	r := response{status: resp.StatusCode, body: string(raw), err: err, dur: time.Since(begin)}

	var parsed struct {
		Summary string `json:"summary"`
	}
	if json.Unmarshal(raw, &parsed) == nil {
		r.summary = parsed.Summary
	}

	return r
}
