package config

// Config is the on-disk shape (JSON or YAML). Durations are Go duration
// strings ("30s", "3m"); dates are YYYY-MM-DD.
type Config struct {
	Telegram TelegramConfig  `json:"telegram"`
	Logging  LoggingConfig   `json:"logging"`
	Upstream UpstreamConfig  `json:"upstream"`
	Watch    WatchConfig     `json:"watch"`
	Accounts []AccountConfig `json:"accounts" validate:"min=1,dive"`
	HTTP     HTTPConfig      `json:"http"`

	// If the whole section is omitted the notifier runs with defaults.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token" validate:"required"`
	ChatID   int64  `json:"chat_id" validate:"required"`
	ThreadID int    `json:"thread_id,omitempty"`

	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	PollTimeout  string  `json:"poll_timeout,omitempty"`
	// Commands enables long polling for operator commands.
	Commands bool `json:"commands,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec" validate:"gte=0"`
}

type UpstreamConfig struct {
	BaseURL        string `json:"base_url,omitempty" validate:"omitempty,url"`
	EntryPath      string `json:"entry_path,omitempty" validate:"omitempty,startswith=/"`
	LoginPath      string `json:"login_path,omitempty" validate:"omitempty,startswith=/"`
	ProfilePath    string `json:"profile_path,omitempty" validate:"omitempty,startswith=/"`
	NearestPath    string `json:"nearest_path,omitempty" validate:"omitempty,startswith=/"`
	XSRFCookie     string `json:"xsrf_cookie,omitempty"`
	SessionCookie  string `json:"session_cookie,omitempty"`
	BranchID       int    `json:"branch_id,omitempty" validate:"gte=0"`
	ServiceID      int    `json:"service_id,omitempty" validate:"gte=0"`
	RequestTimeout string `json:"request_timeout,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
}

type WatchConfig struct {
	Interval           string `json:"interval,omitempty"`
	AccountSwitchDelay string `json:"account_switch_delay,omitempty"`
	RetryDelay         string `json:"retry_delay,omitempty"`
	PauseDuration      string `json:"pause_duration,omitempty"`
	LimitTTL           string `json:"limit_ttl,omitempty"`

	TargetDeadline string `json:"target_deadline" validate:"required,datetime=2006-01-02"`
	// ProbeDate is the start day sent with the query; empty means today.
	ProbeDate string `json:"probe_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Timezone  string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

type AccountConfig struct {
	PSN         string `json:"psn" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Country     string `json:"country,omitempty"`
	LoginType   string `json:"login_type,omitempty"`
}

type HTTPConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty" validate:"omitempty,hostname_port"`
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
}

type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers,omitempty" validate:"gte=0"`
	QueueSize       int    `json:"queue_size,omitempty" validate:"gte=0"`
	RatePerSec      int    `json:"rate_per_sec,omitempty" validate:"gte=0"`
	RetryMax        int    `json:"retry_max,omitempty" validate:"gte=0"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	SendTimeout     string `json:"send_timeout,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty" validate:"gte=0"`
}
