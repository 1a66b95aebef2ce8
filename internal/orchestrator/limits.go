package orchestrator

import (
	"sync"
	"time"

	"slotwatch/internal/metrics"
	logx "slotwatch/pkg/logx"
)

const DefaultLimitTTL = 24 * time.Hour

// LimitTracker holds the per-account daily-quota marks. Marks expire lazily on read.
type LimitTracker struct {
	reg   *Registry
	clock Clock
	ttl   time.Duration
	log   logx.Logger

	mu    sync.Mutex
	marks map[string]time.Time
}

func NewLimitTracker(reg *Registry, clock Clock, ttl time.Duration, log logx.Logger) *LimitTracker {
	if clock == nil {
		clock = SystemClock()
	}
	if ttl <= 0 {
		ttl = DefaultLimitTTL
	}
	return &LimitTracker{reg: reg, clock: clock, ttl: ttl, log: log, marks: map[string]time.Time{}}
}

func (t *LimitTracker) MarkLimited(i int) {
	t.mu.Lock()
	t.marks[t.reg.Identity(i)] = t.clock.Now()
	n := len(t.marks)
	t.mu.Unlock()
	metrics.SetLimitedAccounts(n)
}

func (t *LimitTracker) IsLimited(i int) bool {
	id := t.reg.Identity(i)
	now := t.clock.Now()

	t.mu.Lock()
	at, ok := t.marks[id]
	expired := ok && now.Sub(at) >= t.ttl
	if expired {
		delete(t.marks, id)
	}
	n := len(t.marks)
	t.mu.Unlock()

	if expired {
		metrics.SetLimitedAccounts(n)
		t.log.Info("daily limit expired", logx.Int("account", i+1))
		return false
	}
	return ok
}

// NextAvailable returns preferred when it is unlimited, otherwise the first
// unlimited account after it (wrapping). With every account limited it returns preferred.
func (t *LimitTracker) NextAvailable(preferred int) int {
	n := t.reg.Count()
	if preferred < 0 || preferred >= n {
		preferred = 0
	}
	if !t.IsLimited(preferred) {
		return preferred
	}
	for step := 1; step < n; step++ {
		i := (preferred + step) % n
		if !t.IsLimited(i) {
			return i
		}
	}
	return preferred
}

// Reset clears one mark and reports whether there was one.
func (t *LimitTracker) Reset(i int) bool {
	t.mu.Lock()
	id := t.reg.Identity(i)
	_, ok := t.marks[id]
	delete(t.marks, id)
	n := len(t.marks)
	t.mu.Unlock()
	metrics.SetLimitedAccounts(n)
	return ok
}

// ResetAll clears every mark and returns how many were removed.
func (t *LimitTracker) ResetAll() int {
	t.mu.Lock()
	n := len(t.marks)
	t.marks = map[string]time.Time{}
	t.mu.Unlock()
	metrics.SetLimitedAccounts(0)
	return n
}

type LimitInfo struct {
	Limited   bool
	MarkedAt  time.Time
	ExpiresAt time.Time
}

// Snapshot returns the limit state of every account, applying expiry.
func (t *LimitTracker) Snapshot() []LimitInfo {
	out := make([]LimitInfo, t.reg.Count())
	for i := range out {
		if !t.IsLimited(i) {
			continue
		}
		t.mu.Lock()
		at, ok := t.marks[t.reg.Identity(i)]
		t.mu.Unlock()
		if ok {
			out[i] = LimitInfo{Limited: true, MarkedAt: at, ExpiresAt: at.Add(t.ttl)}
		}
	}
	return out
}
