package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "slotwatch/internal/transport"
)

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	l.Info("nothing happens", String("k", "v"))
	assert.False(t, Nop().IsZero())
}

func TestWithAppendsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "orchestrator"))
	log.Info("cycle finished", Int("account", 2), Err(errors.New("boom")))

	line := buf.String()
	assert.Contains(t, line, `"comp":"orchestrator"`)
	assert.Contains(t, line, `"account":2`)
	assert.Contains(t, line, `"err":"boom"`)
	assert.Contains(t, line, `"caller":"logx_test.go:`)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in, zerolog.InfoLevel), in)
	}
}

func TestFormatTelegramLineSortsFields(t *testing.T) {
	line := []byte(`{"level":"warn","time":"x","message":"retry scheduled","b":"2","a":1}`)
	got := formatTelegramLine(line)
	assert.Equal(t, "[WARN] retry scheduled\n- a=1\n- b=2", got)

	raw := formatTelegramLine([]byte("  not json  "))
	assert.Equal(t, "not json", raw)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	r.sent = append(r.sent, text)
	r.mu.Unlock()
	return kit.MessageRef{}, nil
}

func (r *recordingSender) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func TestTelegramSinkForwardsWarnings(t *testing.T) {
	snd := &recordingSender{}
	svc, log := New(Config{Level: "debug"}, snd)
	t.Cleanup(func() { _ = svc.Close() })

	svc.SetTelegramTarget(kit.ChatTarget{ChatID: 42})
	svc.Apply(Config{Level: "debug", Telegram: TelegramConfig{Enabled: true, MinLevel: "warn", RatePerSec: 10}})

	log.Info("quiet")
	log.Warn("all accounts limited", Int("accounts", 3))

	require.Eventually(t, func() bool { return len(snd.messages()) == 1 }, time.Second, 10*time.Millisecond)
	msg := snd.messages()[0]
	assert.True(t, strings.HasPrefix(msg, "[WARN] all accounts limited"))
	assert.Contains(t, msg, "accounts=3")
}
