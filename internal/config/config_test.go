package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotwatch/internal/apperr"
	"slotwatch/internal/portal"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  chat_id: -100
  owner_user_ids: [7]
logging:
  level: info
  console: true
watch:
  interval: 45s
  target_deadline: "2025-11-01"
  probe_date: "2025-11-01"
  timezone: Asia/Yerevan
accounts:
  - psn: "AB123"
    phone_number: "98000000"
`

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func newManager(path string, env map[string]string) *ConfigManager {
	m := NewConfigManager(path)
	m.env = envFrom(env)
	return m
}

func TestLoadYAMLAndResolve(t *testing.T) {
	m := newManager(writeFile(t, "config.yaml", sampleYAML), nil)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	r, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, r.Watch.Interval)
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), r.Watch.TargetDeadline)
	assert.Equal(t, "Asia/Yerevan", r.Watch.Location.String())
	assert.Equal(t, portal.DefaultTimeout, r.Portal.Timeout)
	assert.Equal(t, []portal.Credentials{{PSN: "AB123", Phone: "98000000"}}, r.Credentials)
	assert.True(t, r.Notifier.Enabled)
	assert.Equal(t, 10*time.Second, r.PollTimeout)
}

func TestUnknownFieldRejected(t *testing.T) {
	m := newManager(writeFile(t, "config.json", `{"telegram":{"token":"x","chat_id":1},"bogus":true}`), nil)
	_, err := m.Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestTrailingDataRejected(t *testing.T) {
	m := newManager(writeFile(t, "config.json", `{} {}`), nil)
	_, err := m.Parse()
	require.Error(t, err)
}

func TestValidationFailuresAreConfigErrors(t *testing.T) {
	cases := map[string]string{
		"no deadline":  `{"telegram":{"token":"x","chat_id":1},"accounts":[{"psn":"a","phone_number":"1"}]}`,
		"bad deadline": `{"telegram":{"token":"x","chat_id":1},"watch":{"target_deadline":"01-11-2025"},"accounts":[{"psn":"a","phone_number":"1"}]}`,
		"no accounts":  `{"telegram":{"token":"x","chat_id":1},"watch":{"target_deadline":"2025-11-01"}}`,
		"no token":     `{"telegram":{"chat_id":1},"watch":{"target_deadline":"2025-11-01"},"accounts":[{"psn":"a","phone_number":"1"}]}`,
		"bad interval": `{"telegram":{"token":"x","chat_id":1},"watch":{"target_deadline":"2025-11-01","interval":"soon"},"accounts":[{"psn":"a","phone_number":"1"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newManager(writeFile(t, "config.json", body), nil).Load()
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindConfig), err.Error())
		})
	}
}

func TestEnvOnly(t *testing.T) {
	m := newManager("", map[string]string{
		"TELEGRAM_TOKEN":  "123:abc",
		"CHAT_ID":         "42",
		"CHECK_INTERVAL":  "10",
		"TARGET_DEADLINE": "2025-11-01",
		"PSN":             "A1",
		"PHONE_NUMBER":    "98000001",
		"PSN_2":           "A2",
		"PHONE_NUMBER_2":  "98000002",
		"PSN_4":           "A4",
		"PHONE_NUMBER_4":  "98000004",
		"HTTP_ADDR":       "127.0.0.1:9090",
	})
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
	assert.Equal(t, "30s", cfg.Watch.Interval)
	require.Len(t, cfg.Accounts, 3, "numbering gaps are skipped")
	assert.Equal(t, "A2", cfg.Accounts[1].PSN)
	assert.Equal(t, "A4", cfg.Accounts[2].PSN)
	assert.True(t, cfg.HTTP.Enabled)
	assert.NoError(t, m.Watch(context.Background()))
}

func TestHalfConfiguredEnvAccountFails(t *testing.T) {
	cases := map[string]struct {
		env     map[string]string
		missing string
	}{
		"phone missing": {
			env: map[string]string{
				"PSN": "A1", "PHONE_NUMBER": "98000001",
				"PSN_2": "A2",
				"PSN_3": "A3", "PHONE_NUMBER_3": "98000003",
			},
			missing: "PHONE_NUMBER_2",
		},
		"psn missing": {
			env: map[string]string{
				"PHONE_NUMBER": "98000001",
			},
			missing: "PSN",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := map[string]string{
				"TELEGRAM_TOKEN":  "123:abc",
				"CHAT_ID":         "42",
				"TARGET_DEADLINE": "2025-11-01",
			}
			for k, v := range tc.env {
				env[k] = v
			}
			cfg, err := newManager("", env).Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.missing+" is missing")
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	m := newManager(writeFile(t, "config.yaml", sampleYAML), map[string]string{
		"CHECK_INTERVAL": "2m",
		"PSN":            "ENV",
		"PHONE_NUMBER":   "98111111",
	})
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "2m0s", cfg.Watch.Interval)
	assert.Equal(t, []AccountConfig{{PSN: "ENV", PhoneNumber: "98111111"}}, cfg.Accounts)
}

func TestBadEnvValues(t *testing.T) {
	for _, env := range []map[string]string{
		{"CHAT_ID": "chat"},
		{"CHECK_INTERVAL": "0"},
		{"CHECK_INTERVAL": "-5s"},
		{"OWNER_USER_IDS": "1,x"},
	} {
		var cfg Config
		assert.Error(t, applyEnv(&cfg, envFrom(env)), env)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t", ChatID: 1, OwnerUserIDs: []int64{1}},
			Watch:    WatchConfig{Interval: "30s", TargetDeadline: "2025-11-01"},
		}
	}

	a, b := base(), base()
	b.Logging.Level = "debug"
	b.Telegram.OwnerUserIDs = []int64{1, 2}
	changed, _, restart := SummarizeConfigChange(a, b)
	assert.Equal(t, []string{"logging", "telegram"}, changed)
	assert.Empty(t, restart)

	b = base()
	b.Watch.Interval = "1m"
	b.Telegram.Token = "other"
	changed, _, restart = SummarizeConfigChange(a, b)
	assert.Equal(t, []string{"telegram", "watch"}, changed)
	assert.Equal(t, []string{"telegram", "watch"}, restart)
}

func TestWatchPublishesValidChanges(t *testing.T) {
	path := writeFile(t, "config.yaml", sampleYAML)
	m := newManager(path, nil)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// invalid edits are not published
	require.NoError(t, os.WriteFile(path, []byte("telegram: {}\n"), 0o600))
	time.Sleep(500 * time.Millisecond)
	assert.Len(t, ch, 0)

	updated := strings.Replace(sampleYAML, "level: info", "level: debug", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload published")
	}
}
