package config

import (
	"reflect"
	"sort"

	logx "slotwatch/pkg/logx"
)

// SummarizeConfigChange returns (1) the changed sections, (2) safe structured
// attrs for logging (never tokens, PSNs or phones) and (3) the changed
// sections that only take effect after a restart.
//
// Live-applied: logging and telegram.owner_user_ids.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var changed, restart []string
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if !reflect.DeepEqual(ot, nt) {
		changed = append(changed, "telegram")
		attrs = append(attrs, logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)))
		ot.OwnerUserIDs, nt.OwnerUserIDs = nil, nil
		if !reflect.DeepEqual(ot, nt) {
			restart = append(restart, "telegram")
		}
	}

	sections := []struct {
		name     string
		old, new any
	}{
		{"upstream", oldCfg.Upstream, newCfg.Upstream},
		{"watch", oldCfg.Watch, newCfg.Watch},
		{"accounts", oldCfg.Accounts, newCfg.Accounts},
		{"http", oldCfg.HTTP, newCfg.HTTP},
		{"notifier", oldCfg.Notifier, newCfg.Notifier},
	}
	for _, s := range sections {
		if reflect.DeepEqual(s.old, s.new) {
			continue
		}
		changed = append(changed, s.name)
		restart = append(restart, s.name)
	}
	if len(oldCfg.Accounts) != len(newCfg.Accounts) {
		attrs = append(attrs, logx.Int("accounts.count", len(newCfg.Accounts)))
	}
	if oldCfg.Watch.Interval != newCfg.Watch.Interval {
		attrs = append(attrs, logx.String("watch.interval", newCfg.Watch.Interval))
	}

	sort.Strings(changed)
	sort.Strings(restart)
	return changed, attrs, restart
}
