package config

import (
	"fmt"
	"strings"
	"time"

	"slotwatch/internal/httpapi"
	"slotwatch/internal/notifier"
	"slotwatch/internal/orchestrator"
	"slotwatch/internal/portal"
	logx "slotwatch/pkg/logx"
)

const dateLayout = "2006-01-02"

// Resolved holds the typed settings each component is built from.
type Resolved struct {
	Portal      portal.Config
	Watch       orchestrator.WatchConfig
	Credentials []portal.Credentials
	HTTP        httpapi.Config
	Notifier    notifier.Config
	Logging     logx.Config
	PollTimeout time.Duration
}

// Resolve parses durations, dates and the timezone.
func (c *Config) Resolve() (Resolved, error) {
	var r Resolved
	var err error

	r.Portal = portal.Config{
		BaseURL:       c.Upstream.BaseURL,
		EntryPath:     c.Upstream.EntryPath,
		LoginPath:     c.Upstream.LoginPath,
		ProfilePath:   c.Upstream.ProfilePath,
		NearestPath:   c.Upstream.NearestPath,
		XSRFCookie:    c.Upstream.XSRFCookie,
		SessionCookie: c.Upstream.SessionCookie,
		BranchID:      c.Upstream.BranchID,
		ServiceID:     c.Upstream.ServiceID,
		UserAgent:     c.Upstream.UserAgent,
	}
	if r.Portal.Timeout, err = ParseDurationOrDefault("upstream.request_timeout", c.Upstream.RequestTimeout, portal.DefaultTimeout); err != nil {
		return r, err
	}

	w := &r.Watch
	durations := []struct {
		path string
		raw  string
		dst  *time.Duration
	}{
		{"watch.interval", c.Watch.Interval, &w.Interval},
		{"watch.account_switch_delay", c.Watch.AccountSwitchDelay, &w.AccountSwitchDelay},
		{"watch.retry_delay", c.Watch.RetryDelay, &w.RetryDelay},
		{"watch.pause_duration", c.Watch.PauseDuration, &w.PauseDuration},
		{"watch.limit_ttl", c.Watch.LimitTTL, &w.LimitTTL},
	}
	for _, d := range durations {
		if *d.dst, err = ParseDurationField(d.path, d.raw); err != nil {
			return r, err
		}
	}

	w.Location = time.Local
	if tz := strings.TrimSpace(c.Watch.Timezone); tz != "" {
		if w.Location, err = time.LoadLocation(tz); err != nil {
			return r, fmt.Errorf("watch.timezone: %w", err)
		}
	}
	if w.TargetDeadline, err = parseDay("watch.target_deadline", c.Watch.TargetDeadline); err != nil {
		return r, err
	}
	if w.TargetDeadline.IsZero() {
		return r, fmt.Errorf("watch.target_deadline: required")
	}
	if w.ProbeDate, err = parseDay("watch.probe_date", c.Watch.ProbeDate); err != nil {
		return r, err
	}

	r.Credentials = make([]portal.Credentials, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		r.Credentials = append(r.Credentials, portal.Credentials{
			PSN:       a.PSN,
			Phone:     a.PhoneNumber,
			Country:   a.Country,
			LoginType: a.LoginType,
		})
	}

	r.HTTP = httpapi.Config{
		Enabled:       c.HTTP.Enabled,
		Addr:          c.HTTP.Addr,
		Token:         c.HTTP.Token,
		AllowInsecure: c.HTTP.AllowInsecure,
		Pprof:         c.HTTP.Pprof,
	}
	if r.HTTP.ReadTimeout, err = ParseDurationOrDefault("http.read_timeout", c.HTTP.ReadTimeout, 10*time.Second); err != nil {
		return r, err
	}
	// /check can run a full login + query, so the default write timeout is generous.
	if r.HTTP.WriteTimeout, err = ParseDurationOrDefault("http.write_timeout", c.HTTP.WriteTimeout, 2*time.Minute); err != nil {
		return r, err
	}

	if r.Notifier, err = c.notifierConfig(); err != nil {
		return r, err
	}
	r.Logging = c.LogConfig()

	if r.PollTimeout, err = ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second); err != nil {
		return r, err
	}
	return r, nil
}

// LogConfig maps the logging section; it is the only section applied live.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    c.Logging.Telegram.Enabled,
			ThreadID:   c.Logging.Telegram.ThreadID,
			MinLevel:   c.Logging.Telegram.MinLevel,
			RatePerSec: c.Logging.Telegram.RatePerSec,
		},
	}
}

func (c *Config) notifierConfig() (notifier.Config, error) {
	n := notifier.Config{Enabled: true, RetryMax: 3}
	src := c.Notifier
	if src == nil {
		return n, nil
	}
	n = notifier.Config{
		Enabled:         src.Enabled,
		Workers:         src.Workers,
		QueueSize:       src.QueueSize,
		RatePerSec:      src.RatePerSec,
		RetryMax:        src.RetryMax,
		DedupMaxEntries: src.DedupMaxEntries,
	}
	var err error
	if n.RetryBase, err = ParseDurationField("notifier.retry_base", src.RetryBase); err != nil {
		return n, err
	}
	if n.RetryMaxDelay, err = ParseDurationField("notifier.retry_max_delay", src.RetryMaxDelay); err != nil {
		return n, err
	}
	if n.SendTimeout, err = ParseDurationField("notifier.send_timeout", src.SendTimeout); err != nil {
		return n, err
	}
	if n.DedupWindow, err = ParseDurationField("notifier.dedup_window", src.DedupWindow); err != nil {
		return n, err
	}
	return n, nil
}

func parseDay(path, raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid date %q (want YYYY-MM-DD)", path, raw)
	}
	return t, nil
}
