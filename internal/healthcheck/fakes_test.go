package healthcheck_test

import (
	"context"
	"sync"

	"github.com/angeloszaimis/proxy-sentinel/internal/egress"
	"github.com/angeloszaimis/proxy-sentinel/internal/proxy"
)

type fakeDiscoverer struct {
	mu      sync.Mutex
	targets []proxy.Target
	panics  bool
	calls   int
}

func (f *fakeDiscoverer) Discover(context.Context) []proxy.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("manifest exploded")
	}
	return f.targets
}

func (f *fakeDiscoverer) setPanics(p bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics = p
}

// fakeResolver answers direct lookups with host and proxied lookups from
// byAddr.
type fakeResolver struct {
	mu     sync.Mutex
	host   egress.Result
	byAddr map[string]egress.Result
	direct int
}

func (f *fakeResolver) Resolve(_ context.Context, proxyAddr string) egress.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if proxyAddr == "" {
		f.direct++
		return f.host
	}
	return f.byAddr[proxyAddr]
}

// fakeOracle counts lookups per container and blocks on gate when set.
type fakeOracle struct {
	mu      sync.Mutex
	running map[string]bool
	calls   map[string]int
	gate    chan struct{}
}

func newFakeOracle(running map[string]bool) *fakeOracle {
	return &fakeOracle{running: running, calls: map[string]int{}}
}

func (f *fakeOracle) IsRunning(_ context.Context, name string) bool {
	f.mu.Lock()
	f.calls[name]++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[name]
}

func (f *fakeOracle) block() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeOracle) unblock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = nil
}

func (f *fakeOracle) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeOracle) callsFor(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}
