package healthcheck

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/proxy-sentinel/internal/proxy"
)

// Start runs the first cycle synchronously and then keeps running cycles one
// interval after each other until ctx is done or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	o.tick()

	go func() {
		<-ctx.Done()
		o.Stop()
	}()
}

// Stop cancels the pending periodic cycle and disables rescheduling. A cycle
// already running is left to finish.
func (o *Orchestrator) Stop() {
	o.timerMutex.Lock()
	defer o.timerMutex.Unlock()

	o.stopped = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// CheckNow runs an on-demand cycle and waits for it. The pending periodic
// cycle is cancelled first and rescheduled one interval after this returns.
func (o *Orchestrator) CheckNow(ctx context.Context) (proxy.HealthSummary, error) {
	o.cancelScheduled()
	defer o.schedule()

	return o.TriggerCheck(ctx)
}

func (o *Orchestrator) tick() {
	defer o.schedule()

	if o.InFlight() {
		o.logger.Info("Skipping scheduled health check as one is already in progress.")
		return
	}

	// Failures are logged by the cycle itself.
	if _, err := o.TriggerCheck(context.Background()); err != nil {
		o.logger.Debug("Scheduled health check returned an error", slog.Any("err", err))
	}
}

func (o *Orchestrator) schedule() {
	o.timerMutex.Lock()
	defer o.timerMutex.Unlock()

	if o.stopped {
		return
	}
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.interval, o.tick)
}

func (o *Orchestrator) cancelScheduled() {
	o.timerMutex.Lock()
	defer o.timerMutex.Unlock()

	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}
