package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slotwatch/internal/portal"
	"slotwatch/internal/transport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type deferred struct {
	delay time.Duration
	job   func(ctx context.Context)
}

// fakeDeferrer records named tasks; tests fire them by hand.
type fakeDeferrer struct {
	mu    sync.Mutex
	tasks map[string]deferred
}

func newFakeDeferrer() *fakeDeferrer { return &fakeDeferrer{tasks: map[string]deferred{}} }

func (d *fakeDeferrer) After(name string, delay time.Duration, job func(ctx context.Context)) {
	d.mu.Lock()
	d.tasks[name] = deferred{delay: delay, job: job}
	d.mu.Unlock()
}

func (d *fakeDeferrer) pending(name string) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tasks[name]
	return t.delay, ok
}

func (d *fakeDeferrer) fire(t *testing.T, name string) {
	d.mu.Lock()
	task, ok := d.tasks[name]
	delete(d.tasks, name)
	d.mu.Unlock()
	require.True(t, ok, "no pending task %q", name)
	task.job(context.Background())
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []transport.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg transport.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Text)
	}
	return out
}

// fakeUpstream scripts portal answers per PSN.
type fakeUpstream struct {
	mu         sync.Mutex
	nearest    map[string]func() (*portal.Reply, error)
	loginBody  string
	logins     map[string]int
	queries    int
	probeFails bool
	transports int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		nearest:   map[string]func() (*portal.Reply, error){},
		loginBody: `{"status":"OK"}`,
		logins:    map[string]int{},
	}
}

func (u *fakeUpstream) answer(psn string, body string) {
	u.mu.Lock()
	u.nearest[psn] = func() (*portal.Reply, error) { return portal.ParseReply([]byte(body)) }
	u.mu.Unlock()
}

func (u *fakeUpstream) answerFunc(psn string, fn func() (*portal.Reply, error)) {
	u.mu.Lock()
	u.nearest[psn] = fn
	u.mu.Unlock()
}

func (u *fakeUpstream) loginCount(psn string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.logins[psn]
}

func (u *fakeUpstream) queryCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.queries
}

func (u *fakeUpstream) factory() Transport {
	u.mu.Lock()
	u.transports++
	u.mu.Unlock()
	return &fakeTransport{up: u}
}

type fakeTransport struct {
	up  *fakeUpstream
	psn string
}

func (t *fakeTransport) Reset() {}

func (t *fakeTransport) FetchAntiForgery(context.Context) (string, error) { return "xsrf", nil }

func (t *fakeTransport) Login(ctx context.Context, token string, creds portal.Credentials) (*portal.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, &portal.Error{Op: "login", Err: err}
	}
	if token != "xsrf" {
		return nil, errors.New("bad token")
	}
	t.up.mu.Lock()
	t.up.logins[creds.PSN]++
	body := t.up.loginBody
	t.up.mu.Unlock()
	t.psn = creds.PSN
	return portal.ParseReply([]byte(body))
}

func (t *fakeTransport) Probe(context.Context, string) error {
	t.up.mu.Lock()
	defer t.up.mu.Unlock()
	if t.up.probeFails {
		return errors.New("profile: 401")
	}
	return nil
}

// NearestDay fails like an aborted request when ctx is done after the script ran.
func (t *fakeTransport) NearestDay(ctx context.Context, _, _ string) (*portal.Reply, error) {
	t.up.mu.Lock()
	t.up.queries++
	fn := t.up.nearest[t.psn]
	t.up.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("no script for %q", t.psn)
	}
	r, err := fn()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &portal.Error{Op: "nearest", Err: ctxErr}
	}
	return r, err
}

const (
	quotaBody = `{"status":"ERROR","error":"Ձեր օրական սահմանաչափը սպառված է"}`
	lateBody  = `{"status":"OK","data":{"day":"15-12-2025","slots":[{"value":"11:00"}]}}`
	earlyBody = `{"status":"OK","data":{"day":"15-10-2025","slots":[{"value":"09:00"},{"value":"09:30"}]}}`
)

type harness struct {
	o     *Orchestrator
	up    *fakeUpstream
	def   *fakeDeferrer
	notes *recordingNotifier
	clock *fakeClock
}

func psn(i int) string { return fmt.Sprint(100 + i) }

func newHarness(t *testing.T, accounts int) *harness {
	t.Helper()
	creds := make([]portal.Credentials, accounts)
	for i := range creds {
		creds[i] = portal.Credentials{PSN: psn(i), Phone: fmt.Sprintf("9800000%d", i)}
	}
	reg, err := NewRegistry(creds)
	require.NoError(t, err)

	h := &harness{
		up:    newFakeUpstream(),
		def:   newFakeDeferrer(),
		notes: &recordingNotifier{},
		clock: newFakeClock(),
	}
	h.o, err = New(Options{
		Registry:   reg,
		Transports: h.up.factory,
		Deferrer:   h.def,
		Notifier:   h.notes,
		Target:     transport.ChatTarget{ChatID: 1},
		Clock:      h.clock,
		Watch: WatchConfig{
			TargetDeadline: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
			ProbeDate:      time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	return h
}
