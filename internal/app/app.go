package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"slotwatch/internal/config"
	"slotwatch/internal/eventbus"
	"slotwatch/internal/httpapi"
	"slotwatch/internal/notifier"
	"slotwatch/internal/orchestrator"
	rtsup "slotwatch/internal/runtime/supervisor"
	"slotwatch/internal/task/scheduler"
	kit "slotwatch/internal/transport"
	telegram "slotwatch/internal/transport/telegram/adapter"
	"slotwatch/internal/transport/telegram/router"
	logx "slotwatch/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	cfg  *config.Config
	res  config.Resolved

	sup  *rtsup.Supervisor
	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	adapter *telegram.Adapter
	sched   *scheduler.Service
	notif   *notifier.Service
	orch    *orchestrator.Orchestrator
	http    *httpapi.Service
	cmdm    *router.CommandManager

	target  kit.ChatTarget
	updates chan kit.Update
}

// NewApp loads config (file plus environment) and wires every component.
// Nothing runs until Start.
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	res, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: res.PollTimeout,
	}, bootLog)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	target := kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID}

	// Bootstrap with the Telegram sink off, set its target, then apply the final config.
	logCfg := res.Logging
	logCfg.Telegram.Enabled = false
	logSvc, log := logx.New(logCfg, ad)
	logSvc.SetTelegramTarget(target)
	logSvc.Apply(res.Logging)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sched := scheduler.New(scheduler.Config{Timezone: cfg.Watch.Timezone}, log.With(logx.String("comp", "scheduler")), bus)

	notif := notifier.New(res.Notifier, ad, log, bus)
	notif.SetDefaultTarget(target)

	reg, err := orchestrator.NewRegistry(res.Credentials)
	if err != nil {
		return nil, err
	}
	orch, err := orchestrator.New(orchestrator.Options{
		Registry:   reg,
		Transports: orchestrator.PortalTransports(res.Portal),
		Deferrer:   sched,
		Notifier:   notif,
		Target:     target,
		Watch:      res.Watch,
		Bus:        bus,
		Log:        log,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		cfg:     cfg,
		res:     res,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		adapter: ad,
		sched:   sched,
		notif:   notif,
		orch:    orch,
		http:    httpapi.New(res.HTTP, orch, log),
		target:  target,
	}
	if cfg.Telegram.Commands {
		a.cmdm = router.NewCommandManager(log, ad, cfg.Telegram.OwnerUserIDs)
		a.updates = make(chan kit.Update, 64)
	}
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.notif.Start(a.sup.Context())
	a.sched.Start(a.sup.Context())
	if err := a.orch.RegisterPolling(a.sched); err != nil {
		return err
	}
	if err := a.http.Start(a.sup.Context()); err != nil {
		return err
	}

	if a.cmdm != nil {
		if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
			return err
		}
		a.cmdm.SetCommands(a.sup.Context(), router.WatcherCommands(a.cmdm, a.orch, nil))
		a.sup.Go("commands.dispatch", func(c context.Context) error {
			return a.cmdm.DispatchLoop(c, a.updates)
		})
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(last, newCfg)
				last = newCfg
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go0("systemd.watchdog", func(c context.Context) { watchdogLoop(c, a.log) })

	w := a.orch.Watch()
	a.log.Info("app started",
		logx.Int("accounts", a.orch.Registry().Count()),
		logx.Duration("interval", w.Interval),
		logx.String("deadline", w.TargetDeadline.Format("2006-01-02")),
		logx.Bool("commands", a.cmdm != nil),
	)
	if err := a.notif.Notify(ctx, kit.Notification{Kind: "lifecycle", Text: a.startupText()}); err != nil {
		a.log.Warn("startup notification failed", logx.Err(err))
	}
	sdNotify(a.log, daemon.SdNotifyReady)
	return nil
}

func (a *App) startupText() string {
	w := a.orch.Watch()
	return fmt.Sprintf("✅ slotwatch started: %d account(s), interval %s, deadline %s",
		a.orch.Registry().Count(), w.Interval, w.TargetDeadline.Format("2006-01-02"))
}

// applyConfig live-applies logging and owners; everything else waits for a restart.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	a.logs.Apply(newCfg.LogConfig())
	if a.cmdm != nil {
		a.cmdm.SetOwners(newCfg.Telegram.OwnerUserIDs)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.Strs("sections", restart))
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Data: sections})
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// Timers first so no new cycle starts, then the surfaces that trigger cycles.
	runStep(ctx, a.log, "scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	runStep(ctx, a.log, "http", 3*time.Second, func(c context.Context) error { return a.http.Stop(c) })
	runStep(ctx, a.log, "notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	runStep(ctx, a.log, "adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	runStep(ctx, a.log, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
