// Package orchestrator runs the multi-account polling loop: sessions, daily
// limit marks, failover between accounts, global pause and delayed retries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"slotwatch/internal/eventbus"
	"slotwatch/internal/transport"
	logx "slotwatch/pkg/logx"
)

// AnyAccount lets the limit tracker pick the account.
const AnyAccount = -1

const (
	DefaultInterval           = 30 * time.Second
	DefaultAccountSwitchDelay = 30 * time.Second
	DefaultRetryDelay         = 3 * time.Minute
	DefaultPauseDuration      = 3 * time.Minute
)

// Names of the delayed one-shot tasks. Submitting a name again replaces the pending one.
const (
	TaskRetry    = "retry"
	TaskFailover = "failover"
	TaskResume   = "resume"
)

// Deferrer runs job once after delay.
type Deferrer interface {
	After(name string, delay time.Duration, job func(ctx context.Context))
}

// Notifier delivers an operator notification.
type Notifier interface {
	Notify(ctx context.Context, n transport.Notification) error
}

type WatchConfig struct {
	Interval           time.Duration
	AccountSwitchDelay time.Duration
	RetryDelay         time.Duration
	PauseDuration      time.Duration
	LimitTTL           time.Duration

	// TargetDeadline is the last acceptable day (calendar date, UTC midnight).
	TargetDeadline time.Time
	// ProbeDate is sent as the query start day; zero means today in Location.
	ProbeDate time.Time
	Location  *time.Location
}

func (c WatchConfig) withDefaults() WatchConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.AccountSwitchDelay <= 0 {
		c.AccountSwitchDelay = DefaultAccountSwitchDelay
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.PauseDuration <= 0 {
		c.PauseDuration = DefaultPauseDuration
	}
	if c.LimitTTL <= 0 {
		c.LimitTTL = DefaultLimitTTL
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

type Options struct {
	Registry   *Registry
	Transports TransportFactory
	Deferrer   Deferrer
	Notifier   Notifier
	Target     transport.ChatTarget
	Watch      WatchConfig
	Bus        eventbus.Bus
	Clock      Clock
	Log        logx.Logger
}

type schedState struct {
	mu                sync.Mutex
	current           int
	pauseUntil        time.Time
	exhaustedNotified bool
}

// Orchestrator owns all polling state. Its methods are safe for concurrent use.
type Orchestrator struct {
	reg      *Registry
	sessions *SessionStore
	limits   *LimitTracker
	deferrer Deferrer
	notifier Notifier
	target   transport.ChatTarget
	watch    WatchConfig
	bus      eventbus.Bus
	clock    Clock
	log      logx.Logger

	st schedState
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil || opts.Registry.Count() == 0 {
		return nil, ErrNoAccounts
	}
	if opts.Transports == nil {
		return nil, errors.New("orchestrator: transport factory is required")
	}
	if opts.Deferrer == nil {
		return nil, errors.New("orchestrator: deferrer is required")
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.New()
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "orchestrator"))
	watch := opts.Watch.withDefaults()

	return &Orchestrator{
		reg:      opts.Registry,
		sessions: NewSessionStore(opts.Registry, opts.Transports, log),
		limits:   NewLimitTracker(opts.Registry, opts.Clock, watch.LimitTTL, log),
		deferrer: opts.Deferrer,
		notifier: opts.Notifier,
		target:   opts.Target,
		watch:    watch,
		bus:      opts.Bus,
		clock:    opts.Clock,
		log:      log,
	}, nil
}

func (o *Orchestrator) Registry() *Registry     { return o.reg }
func (o *Orchestrator) Limits() *LimitTracker   { return o.limits }
func (o *Orchestrator) Sessions() *SessionStore { return o.sessions }
func (o *Orchestrator) Watch() WatchConfig      { return o.watch }

func (o *Orchestrator) paused(now time.Time) bool {
	o.st.mu.Lock()
	defer o.st.mu.Unlock()
	return !o.st.pauseUntil.IsZero() && now.Before(o.st.pauseUntil)
}

// resolve picks the effective account and records it as current when it moved.
func (o *Orchestrator) resolve(account int) int {
	preferred := account
	if preferred < 0 || !o.reg.Valid(preferred) {
		o.st.mu.Lock()
		preferred = o.st.current
		o.st.mu.Unlock()
	}
	idx := o.limits.NextAvailable(preferred)

	o.st.mu.Lock()
	prev := o.st.current
	if idx != prev {
		o.st.current = idx
	}
	o.st.mu.Unlock()
	if idx != prev {
		o.log.Info("using account", logx.String("account", o.reg.Label(idx)), logx.Int("previous", prev+1))
	}
	return idx
}

func (o *Orchestrator) setCurrent(i int) {
	o.st.mu.Lock()
	o.st.current = i
	o.st.mu.Unlock()
}

func (o *Orchestrator) notify(ctx context.Context, kind, text string) error {
	if o.notifier == nil {
		return nil
	}
	err := o.notifier.Notify(ctx, transport.Notification{Kind: kind, Target: o.target, Text: text})
	if err != nil {
		o.log.Warn("notification failed", logx.String("kind", kind), logx.Err(err))
	}
	return err
}

func (o *Orchestrator) publish(typ string, data any) {
	o.bus.Publish(eventbus.Event{Type: typ, Time: o.clock.Now(), Data: data})
}

// ResetLimit clears account i's daily-limit mark.
func (o *Orchestrator) ResetLimit(i int) (bool, error) {
	if !o.reg.Valid(i) {
		return false, fmt.Errorf("no account %d", i+1)
	}
	had := o.limits.Reset(i)
	o.publish(eventbus.TypeLimitsReset, i)
	return had, nil
}

// ResetAllLimits clears every mark and lifts a global pause.
func (o *Orchestrator) ResetAllLimits() int {
	n := o.limits.ResetAll()
	o.endPause()
	o.publish(eventbus.TypeLimitsReset, AnyAccount)
	return n
}

// Relogin drops account i's session; the next cycle logs in again.
func (o *Orchestrator) Relogin(i int) error {
	if !o.reg.Valid(i) {
		return fmt.Errorf("no account %d", i+1)
	}
	o.sessions.Invalidate(i)
	return nil
}

type AccountStatus struct {
	Index         int       `json:"index"`
	Label         string    `json:"label"`
	Current       bool      `json:"current"`
	Authenticated bool      `json:"authenticated"`
	Limited       bool      `json:"limited"`
	LimitedUntil  time.Time `json:"limited_until,omitempty"`
}

type Snapshot struct {
	Accounts          []AccountStatus `json:"accounts"`
	Current           int             `json:"current"` // 1-based
	Paused            bool            `json:"paused"`
	PauseUntil        time.Time       `json:"pause_until,omitempty"`
	ExhaustedNotified bool            `json:"exhausted_notified"`
	TargetDeadline    string          `json:"target_deadline"`
	Interval          string          `json:"interval"`
}

func (o *Orchestrator) Snapshot() Snapshot {
	now := o.clock.Now()
	limits := o.limits.Snapshot()

	o.st.mu.Lock()
	current := o.st.current
	snap := Snapshot{
		Current:           current + 1,
		ExhaustedNotified: o.st.exhaustedNotified,
	}
	if !o.st.pauseUntil.IsZero() && now.Before(o.st.pauseUntil) {
		snap.Paused = true
		snap.PauseUntil = o.st.pauseUntil
	}
	o.st.mu.Unlock()

	snap.TargetDeadline = o.watch.TargetDeadline.Format(time.DateOnly)
	snap.Interval = o.watch.Interval.String()
	for i := 0; i < o.reg.Count(); i++ {
		snap.Accounts = append(snap.Accounts, AccountStatus{
			Index:         i + 1,
			Label:         o.reg.Label(i),
			Current:       i == current,
			Authenticated: o.sessions.Authenticated(i),
			Limited:       limits[i].Limited,
			LimitedUntil:  limits[i].ExpiresAt,
		})
	}
	return snap
}
