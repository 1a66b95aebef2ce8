package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotwatch/internal/orchestrator"
	kit "slotwatch/internal/transport"
	logx "slotwatch/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeWatcher struct {
	mu       sync.Mutex
	cycles   []int
	resets   []int
	relogins []int
	snap     orchestrator.Snapshot
}

func (w *fakeWatcher) RunCycle(_ context.Context, account int) orchestrator.Result {
	w.mu.Lock()
	w.cycles = append(w.cycles, account)
	w.mu.Unlock()
	return orchestrator.Result{Status: orchestrator.StatusNoChange, Message: "Nearest date is 15-12-2025", Account: "#1 (***000)"}
}

func (w *fakeWatcher) Snapshot() orchestrator.Snapshot { return w.snap }

func (w *fakeWatcher) ResetLimit(i int) (bool, error) {
	w.mu.Lock()
	w.resets = append(w.resets, i)
	w.mu.Unlock()
	return true, nil
}

func (w *fakeWatcher) ResetAllLimits() int { return 2 }

func (w *fakeWatcher) Relogin(i int) error {
	w.mu.Lock()
	w.relogins = append(w.relogins, i)
	w.mu.Unlock()
	return nil
}

const owner = int64(7)

func startRouter(t *testing.T) (*fakeAdapter, *fakeWatcher, chan kit.Update) {
	t.Helper()
	ad := &fakeAdapter{}
	w := &fakeWatcher{snap: orchestrator.Snapshot{
		Accounts: []orchestrator.AccountStatus{
			{Index: 1, Label: "#1 (***000)", Current: true},
			{Index: 2, Label: "#2 (***001)"},
		},
		Current: 1,
	}}
	m := NewCommandManager(logx.Nop(), ad, []int64{owner})
	m.SetCommands(context.Background(), WatcherCommands(m, w, nil))

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 8)
	done := make(chan struct{})
	go func() {
		_ = m.DispatchLoop(ctx, updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ad, w, updates
}

func message(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 1, FromID: from, Text: text}}
}

func waitReply(t *testing.T, ad *fakeAdapter, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(ad.messages()) >= n }, time.Second, 5*time.Millisecond)
	return ad.messages()
}

func TestCheckRunsCycleForAnyAccount(t *testing.T) {
	ad, w, updates := startRouter(t)
	updates <- message(owner, "/check@slotwatch_bot")

	got := waitReply(t, ad, 1)
	assert.Contains(t, got[0], "[no_change]")
	assert.Contains(t, got[0], "#1 (***000)")
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, []int{orchestrator.AnyAccount}, w.cycles)
}

func TestNonOwnerIsRejected(t *testing.T) {
	ad, w, updates := startRouter(t)
	updates <- message(99, "/check")

	got := waitReply(t, ad, 1)
	assert.Equal(t, "unauthorized", got[0])
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.cycles)
}

func TestResetAndReloginTakeOneBasedIndex(t *testing.T) {
	ad, w, updates := startRouter(t)
	updates <- message(owner, "/reset 2")
	waitReply(t, ad, 1)
	updates <- message(owner, "/relogin #1")
	got := waitReply(t, ad, 2)

	assert.Contains(t, got[0], "account #2 limit cleared")
	assert.Contains(t, got[1], "account #1 session dropped")
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, []int{1}, w.resets)
	assert.Equal(t, []int{0}, w.relogins)
}

func TestResetOutOfRangeShowsUsage(t *testing.T) {
	ad, _, updates := startRouter(t)
	updates <- message(owner, "/reset 9")
	got := waitReply(t, ad, 1)
	assert.Equal(t, "usage: /reset [n|all]", got[0])
}

func TestHelpIsPublic(t *testing.T) {
	ad, _, updates := startRouter(t)
	updates <- message(99, "/start")
	got := waitReply(t, ad, 1)
	assert.True(t, strings.HasPrefix(got[0], "📚 <b>Commands</b>"))
	assert.Contains(t, got[0], "/relogin &lt;n&gt;")
}

func TestUnknownCommand(t *testing.T) {
	ad, _, updates := startRouter(t)
	updates <- message(owner, "/nope")
	updates <- message(owner, "plain text is ignored")
	got := waitReply(t, ad, 1)
	assert.Equal(t, "unknown command, try /help", got[0])
}

func TestFormatStatus(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	s := orchestrator.Snapshot{
		Interval:       "30s",
		TargetDeadline: "2025-11-01",
		Accounts: []orchestrator.AccountStatus{
			{Index: 1, Label: "#1 (***000)", Authenticated: true, Current: true},
			{Index: 2, Label: "#2 (***001)", Limited: true, LimitedUntil: now.Add(3 * time.Hour)},
		},
	}
	got := formatStatus(s, now)
	assert.Contains(t, got, "✅ #1 (***000) logged in, current")
	assert.Contains(t, got, "⛔ #2 (***001) limited until 2025-10-15 15:00 (3h0m0s left)")
	assert.Contains(t, got, "running")
}

func TestTokenizeCommandLine(t *testing.T) {
	assert.Equal(t, []string{"/reset", "all"}, tokenizeCommandLine("  /reset   all "))
	assert.Equal(t, []string{"/relogin", "2 3"}, tokenizeCommandLine(`/relogin "2 3"`))
	assert.Nil(t, tokenizeCommandLine("   "))
}
