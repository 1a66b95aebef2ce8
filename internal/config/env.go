package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// checkIntervalUnit scales a bare integer CHECK_INTERVAL (10 -> 30s).
const checkIntervalUnit = 3 * time.Second

// LoadDotEnv loads KEY=VALUE pairs into the process environment. Existing
// variables win. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays process environment variables on cfg.
func ApplyEnv(cfg *Config) error { return applyEnv(cfg, os.LookupEnv) }

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("TELEGRAM_TOKEN"); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := get("CHAT_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}
	if v, ok := get("OWNER_USER_IDS"); ok {
		ids, err := parseIDList(v)
		if err != nil {
			return fmt.Errorf("OWNER_USER_IDS: %w", err)
		}
		cfg.Telegram.OwnerUserIDs = ids
	}
	if v, ok := get("CHECK_INTERVAL"); ok {
		d, err := parseCheckInterval(v)
		if err != nil {
			return fmt.Errorf("CHECK_INTERVAL: %w", err)
		}
		cfg.Watch.Interval = d.String()
	}
	if v, ok := get("TARGET_DEADLINE"); ok {
		cfg.Watch.TargetDeadline = v
	}
	if v, ok := get("PROBE_DATE"); ok {
		cfg.Watch.ProbeDate = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := get("HTTP_ADDR"); ok {
		cfg.HTTP.Enabled = true
		cfg.HTTP.Addr = v
	}
	if v, ok := get("HTTP_TOKEN"); ok {
		cfg.HTTP.Token = v
	}

	accts, err := envAccounts(get)
	if err != nil {
		return err
	}
	if len(accts) > 0 {
		cfg.Accounts = accts
	}
	return nil
}

// maxEnvAccounts bounds the PSN_n/PHONE_NUMBER_n scan.
const maxEnvAccounts = 64

// envAccounts reads PSN/PHONE_NUMBER, then PSN_2/PHONE_NUMBER_2 and so on.
// Numbering may have gaps, but a half-configured pair is an error.
func envAccounts(get func(string) (string, bool)) ([]AccountConfig, error) {
	var out []AccountConfig
	for i := 1; i <= maxEnvAccounts; i++ {
		suffix := ""
		if i > 1 {
			suffix = "_" + strconv.Itoa(i)
		}
		psnKey, phoneKey := "PSN"+suffix, "PHONE_NUMBER"+suffix
		psn, ok1 := get(psnKey)
		phone, ok2 := get(phoneKey)
		switch {
		case ok1 && ok2:
			out = append(out, AccountConfig{PSN: psn, PhoneNumber: phone})
		case ok1:
			return nil, fmt.Errorf("%s is set but %s is missing", psnKey, phoneKey)
		case ok2:
			return nil, fmt.Errorf("%s is set but %s is missing", phoneKey, psnKey)
		}
	}
	return out, nil
}

func parseCheckInterval(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, errors.New("must be > 0")
		}
		return time.Duration(n) * checkIntervalUnit, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be > 0")
	}
	return d, nil
}

func parseIDList(v string) ([]int64, error) {
	var out []int64
	for _, f := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
