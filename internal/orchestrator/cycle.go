package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"slotwatch/internal/apperr"
	"slotwatch/internal/eventbus"
	"slotwatch/internal/metrics"
	"slotwatch/internal/portal"
	logx "slotwatch/pkg/logx"
)

// RunCycle performs one poll for account (or AnyAccount) and always returns a
// terminal Result. Panics are converted into an error result.
//
// Cancelling ctx does not abort a cycle in flight; upstream calls are bounded
// by the portal request timeout instead.
func (o *Orchestrator) RunCycle(ctx context.Context, account int) (res Result) {
	ctx = context.WithoutCancel(ctx)
	start := o.clock.Now()
	id := uuid.NewString()
	log := o.log.With(logx.String("cycle", id))

	defer func() {
		if r := recover(); r != nil {
			log.Error("cycle panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			res = Result{Status: StatusError, Message: fmt.Sprintf("panic: %v", r), AccountIndex: res.AccountIndex}
		}
		res.CycleID = id
		res.Duration = o.clock.Now().Sub(start)
		metrics.RecordCycle(string(res.Status), res.Duration.Seconds())
		o.publish(eventbus.TypeCycleFinished, res)
	}()

	if o.paused(start) {
		log.Debug("polling paused, skipping cycle")
		return Result{Status: StatusPaused, Message: "Checks paused", AccountIndex: AnyAccount}
	}

	idx := o.resolve(account)
	log = log.With(logx.Int("account", idx+1))
	res.AccountIndex = idx

	reply, err := o.query(ctx, idx)
	class := Classify(reply, err)
	if kind := KindFor(class, err); kind != "" {
		log = log.With(logx.String("kind", string(kind)))
	}
	log.Debug("upstream answered", logx.String("class", string(class)))

	var out Result
	switch class {
	case ClassSuccess:
		out = o.onSuccess(ctx, log, idx, reply)
	case ClassBusinessRateLimit:
		out = o.onRateLimit(ctx, log, idx)
	case ClassTemporaryService:
		out = o.onTemporary(log, err)
	default:
		out = o.onOther(log, idx, reply, err)
	}
	out.AccountIndex = idx
	if out.Account == "" {
		out.Account = o.reg.Label(idx)
	}
	return out
}

func (o *Orchestrator) query(ctx context.Context, idx int) (*portal.Reply, error) {
	token, err := o.sessions.EnsureAuthenticated(ctx, idx)
	if err != nil {
		return nil, err
	}
	return o.sessions.NearestDay(ctx, idx, token, FormatDate(o.probeDate()))
}

func (o *Orchestrator) probeDate() time.Time {
	if !o.watch.ProbeDate.IsZero() {
		return o.watch.ProbeDate
	}
	return civil(o.clock.Now().In(o.watch.Location))
}

func (o *Orchestrator) onSuccess(ctx context.Context, log logx.Logger, idx int, reply *portal.Reply) Result {
	o.st.mu.Lock()
	o.st.exhaustedNotified = false
	o.st.mu.Unlock()

	day := reply.Day()
	date, err := ParseDate(day)
	if err != nil {
		o.sessions.Invalidate(idx)
		log.Error("unparsable day in reply", logx.String("day", day), logx.Err(err))
		return Result{Status: StatusError, Message: err.Error(), Data: diagnostic(string(reply.Raw))}
	}

	if date.After(o.watch.TargetDeadline) {
		log.Info("nearest day is past the deadline", logx.String("date", day))
		return Result{Status: StatusNoChange, Message: "No suitable date", Date: day}
	}

	log.Info("open day found", logx.String("date", day), logx.Int("slots", reply.SlotCount()))
	_ = o.notify(ctx, "slot", slotMessage(day, reply.SlotCount(), reply.FirstSlot()))
	var slots []portal.Slot
	if reply.Data != nil {
		slots = reply.Data.Slots
	}
	return Result{Status: StatusSuccess, Message: "Notification sent", Date: day, Slots: slots}
}

func (o *Orchestrator) onRateLimit(ctx context.Context, log logx.Logger, idx int) Result {
	o.limits.MarkLimited(idx)
	o.publish(eventbus.TypeAccountLimited, idx)
	log.Info("daily limit reached, account marked")

	next := o.limits.NextAvailable(idx)
	if next != idx && !o.limits.IsLimited(next) {
		o.setCurrent(next)
		o.publish(eventbus.TypeAccountSwitched, next)
		log.Info("switched account", logx.String("to", o.reg.Label(next)), logx.Duration("retry_in", o.watch.AccountSwitchDelay))
		_ = o.notify(ctx, "failover", switchMessage(o.reg.Label(idx), o.reg.Label(next)))
		o.deferrer.After(TaskFailover, o.watch.AccountSwitchDelay, func(ctx context.Context) {
			o.RunCycle(ctx, AnyAccount)
		})
		return Result{Status: StatusAccountSwitched, Message: "Switched to next available account"}
	}

	until := o.clock.Now().Add(o.watch.PauseDuration)
	o.st.mu.Lock()
	o.st.pauseUntil = until
	claim := !o.st.exhaustedNotified
	if claim {
		o.st.exhaustedNotified = true
	}
	o.st.mu.Unlock()
	metrics.SetPaused(true)
	o.publish(eventbus.TypePauseStarted, until)
	log.Warn("all accounts limited, pausing", logx.Duration("pause", o.watch.PauseDuration))

	if claim {
		if err := o.notify(ctx, "exhausted", exhaustedMessage(o.watch.PauseDuration)); err != nil {
			o.st.mu.Lock()
			o.st.exhaustedNotified = false
			o.st.mu.Unlock()
		}
	}
	o.deferrer.After(TaskResume, o.watch.PauseDuration, func(ctx context.Context) {
		o.endPause()
		o.log.Info("resuming after pause")
		o.RunCycle(ctx, AnyAccount)
	})
	return Result{Status: StatusAllAccountsLimited, Message: "All accounts limited, checks paused"}
}

func (o *Orchestrator) endPause() {
	o.st.mu.Lock()
	was := !o.st.pauseUntil.IsZero()
	o.st.pauseUntil = time.Time{}
	o.st.mu.Unlock()
	if was {
		metrics.SetPaused(false)
		o.publish(eventbus.TypePauseEnded, nil)
	}
}

func (o *Orchestrator) onTemporary(log logx.Logger, err error) Result {
	log.Warn("upstream temporarily unavailable, retry scheduled", logx.Duration("retry_in", o.watch.RetryDelay), logx.Err(err))
	o.deferrer.After(TaskRetry, o.watch.RetryDelay, func(ctx context.Context) {
		o.RunCycle(ctx, AnyAccount)
	})
	return Result{Status: StatusTemporaryError, Message: "Temporary service unavailability"}
}

func (o *Orchestrator) onOther(log logx.Logger, idx int, reply *portal.Reply, err error) Result {
	o.sessions.Invalidate(idx)

	msg := "Unexpected upstream reply"
	payload := ""
	switch {
	case err != nil:
		msg = err.Error()
		payload = apperr.PayloadOf(err)
		if pe, ok := portal.AsError(err); ok && len(pe.Body) > 0 {
			payload = string(pe.Body)
		}
	case reply != nil:
		payload = string(reply.Raw)
	}
	log.Error("cycle failed, session invalidated", logx.Err(err))
	return Result{Status: StatusError, Message: msg, Data: diagnostic(payload)}
}
