package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	logx "slotwatch/pkg/logx"
)

// IntervalScheduler runs job every period, the first time after offset.
type IntervalScheduler interface {
	AddInterval(name string, every, offset time.Duration, job func(ctx context.Context)) error
}

// RegisterPolling installs one repeating job per account, staggered by
// interval/count so the accounts interleave.
func (o *Orchestrator) RegisterPolling(s IntervalScheduler) error {
	n := o.reg.Count()
	step := o.watch.Interval / time.Duration(n)
	for i := 0; i < n; i++ {
		offset := time.Duration(i) * step
		if err := s.AddInterval(PollJobName(i), o.watch.Interval, offset, o.pollJob(i)); err != nil {
			return fmt.Errorf("register poll job for account %d: %w", i+1, err)
		}
		o.log.Info("poll timer registered", logx.String("account", o.reg.Label(i)), logx.Duration("offset", offset), logx.Duration("every", o.watch.Interval))
	}
	return nil
}

func PollJobName(i int) string { return fmt.Sprintf("poll.%d", i+1) }

// pollJob runs the first tick unconditionally; later ticks skip a limited account.
func (o *Orchestrator) pollJob(i int) func(ctx context.Context) {
	var fired atomic.Bool
	return func(ctx context.Context) {
		if fired.Swap(true) && o.limits.IsLimited(i) {
			o.log.Debug("skipping limited account", logx.Int("account", i+1))
			return
		}
		o.RunCycle(ctx, i)
	}
}
