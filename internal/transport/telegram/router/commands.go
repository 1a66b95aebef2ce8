package router

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"slotwatch/internal/orchestrator"
	kit "slotwatch/internal/transport"
)

// Watcher is the part of the orchestrator the operator commands drive.
type Watcher interface {
	RunCycle(ctx context.Context, account int) orchestrator.Result
	Snapshot() orchestrator.Snapshot
	ResetLimit(i int) (bool, error)
	ResetAllLimits() int
	Relogin(i int) error
}

const checkTimeout = 2 * time.Minute

// WatcherCommands returns the operator command set. help renders from m.
func WatcherCommands(m *CommandManager, w Watcher, now func() time.Time) []Command {
	if now == nil {
		now = time.Now
	}
	return []Command{
		{
			Name:        "check",
			Description: "run one poll cycle now",
			Usage:       "/check",
			Access:      AccessOwnerOnly,
			Timeout:     checkTimeout,
			Handle: func(ctx context.Context, req *Request) error {
				res := w.RunCycle(ctx, orchestrator.AnyAccount)
				return req.Reply(ctx, formatResult(res), nil)
			},
		},
		{
			Name:        "status",
			Description: "accounts, limits and pause state",
			Usage:       "/status",
			Access:      AccessOwnerOnly,
			Handle: func(ctx context.Context, req *Request) error {
				return req.Reply(ctx, formatStatus(w.Snapshot(), now()), nil)
			},
		},
		{
			Name:        "reset",
			Description: "clear daily-limit marks",
			Usage:       "/reset [n|all]",
			Access:      AccessOwnerOnly,
			Handle: func(ctx context.Context, req *Request) error {
				if len(req.Args) == 0 || strings.EqualFold(req.Args[0], "all") {
					n := w.ResetAllLimits()
					return req.Reply(ctx, fmt.Sprintf("cleared %d limit mark(s)", n), nil)
				}
				idx, ok := parseAccountArg(req.Args[0], len(w.Snapshot().Accounts))
				if !ok {
					return req.Reply(ctx, "usage: /reset [n|all]", nil)
				}
				had, err := w.ResetLimit(idx)
				if err != nil {
					return err
				}
				if !had {
					return req.Reply(ctx, fmt.Sprintf("account #%d was not limited", idx+1), nil)
				}
				return req.Reply(ctx, fmt.Sprintf("account #%d limit cleared", idx+1), nil)
			},
		},
		{
			Name:        "relogin",
			Description: "drop a session so the next cycle logs in again",
			Usage:       "/relogin <n>",
			Access:      AccessOwnerOnly,
			Handle: func(ctx context.Context, req *Request) error {
				if len(req.Args) == 0 {
					return req.Reply(ctx, "usage: /relogin <n>", nil)
				}
				idx, ok := parseAccountArg(req.Args[0], len(w.Snapshot().Accounts))
				if !ok {
					return errors.New("no such account")
				}
				if err := w.Relogin(idx); err != nil {
					return err
				}
				return req.Reply(ctx, fmt.Sprintf("account #%d session dropped", idx+1), nil)
			},
		},
		{
			Name:        "help",
			Aliases:     []string{"start"},
			Description: "list commands",
			Usage:       "/help",
			Access:      AccessEveryone,
			Handle: func(ctx context.Context, req *Request) error {
				return req.Reply(ctx, helpText(m.list()), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
			},
		},
	}
}

func formatResult(res orchestrator.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", res.Status, res.Message)
	if res.Account != "" {
		fmt.Fprintf(&b, "\naccount: %s", res.Account)
	}
	if res.Date != "" {
		fmt.Fprintf(&b, "\ndate: %s (%d slots)", res.Date, len(res.Slots))
	}
	return b.String()
}

func formatStatus(s orchestrator.Snapshot, now time.Time) string {
	var b strings.Builder
	b.WriteString("📋 Status\n")
	fmt.Fprintf(&b, "interval: %s, deadline: %s\n", s.Interval, s.TargetDeadline)
	if s.Paused {
		fmt.Fprintf(&b, "paused until %s (%s left)\n", s.PauseUntil.Format("2006-01-02 15:04"), s.PauseUntil.Sub(now).Round(time.Second))
	} else {
		b.WriteString("running\n")
	}
	for _, a := range s.Accounts {
		mark := "✅"
		note := "idle"
		if a.Authenticated {
			note = "logged in"
		}
		if a.Limited {
			mark = "⛔"
			note = fmt.Sprintf("limited until %s (%s left)", a.LimitedUntil.Format("2006-01-02 15:04"), a.LimitedUntil.Sub(now).Round(time.Minute))
		}
		if a.Current {
			note += ", current"
		}
		fmt.Fprintf(&b, "%s %s %s\n", mark, a.Label, note)
	}
	return strings.TrimRight(b.String(), "\n")
}

func helpText(cmds []Command) string {
	lines := []string{"📚 <b>Commands</b>", ""}
	for _, c := range cmds {
		line := "<code>" + html.EscapeString(c.Usage) + "</code>"
		if c.Description != "" {
			line += " - " + html.EscapeString(c.Description)
		}
		if c.Access == AccessOwnerOnly {
			line += " 🔒"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
