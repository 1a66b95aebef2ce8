package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "slotwatch/pkg/logx"
)

// AddInterval registers job to run every period, the first run offset after
// registration (or after Start if not started yet). Same-name jobs are replaced.
// Runs of one job never overlap.
func (s *Service) AddInterval(name string, every, offset time.Duration, job func(ctx context.Context)) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if every <= 0 {
		return fmt.Errorf("%s: interval must be positive", name)
	}
	if job == nil {
		return fmt.Errorf("%s: job required", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeScheduleLocked(name)
	s.defs = append(s.defs, scheduleDef{name: name, every: every, offset: offset, job: job})
	if s.c != nil {
		s.addCronLocked(&s.defs[len(s.defs)-1])
	}
	return nil
}

func (s *Service) addCronLocked(d *scheduleDef) {
	name, job := d.name, d.job
	ctx := s.runCtx
	run := cron.FuncJob(func() {
		s.fired(name)
		job(ctx)
	})
	d.entryID = s.c.Schedule(makeStaggeredSchedule(d.every, d.offset, time.Now().In(s.loc)), run)
	s.log.Debug("schedule registered",
		logx.String("name", d.name),
		logx.Duration("every", d.every),
		logx.Duration("offset", d.offset),
	)
}

// After runs job once after delay. A pending job with the same name is replaced.
// Calls after Stop are ignored.
func (s *Service) After(name string, delay time.Duration, job func(ctx context.Context)) {
	if delay < 0 {
		delay = 0
	}

	s.tmu.Lock()
	defer s.tmu.Unlock()
	if s.stopped {
		s.log.Debug("scheduler stopped, delayed job dropped", logx.String("name", name))
		return
	}
	if prev, ok := s.once[name]; ok {
		_ = prev.timer.Stop()
		delete(s.once, name)
	}
	// versions outlive the entry so a replaced timer that already fired stays inert
	ver := s.onceVer[name] + 1
	s.onceVer[name] = ver

	at := time.Now().Add(delay)
	timer := time.AfterFunc(delay, func() { s.runOnce(name, ver, job) })
	s.once[name] = &onceDef{at: at, ver: ver, timer: timer}
	s.log.Debug("delayed job scheduled", logx.String("name", name), logx.Duration("delay", delay))
}

func (s *Service) runOnce(name string, ver uint64, job func(ctx context.Context)) {
	s.tmu.Lock()
	d, ok := s.once[name]
	if s.stopped || !ok || d.ver != ver {
		s.tmu.Unlock()
		return
	}
	delete(s.once, name)
	s.onceWG.Add(1)
	s.tmu.Unlock()

	defer s.onceWG.Done()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("delayed job panicked",
				logx.String("name", name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	s.fired(name)
	job(ctx)
}

// Remove unschedules every interval or pending one-shot job with the given name.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	s.mu.Lock()
	removed := s.removeScheduleLocked(name)
	s.mu.Unlock()

	s.tmu.Lock()
	if d, ok := s.once[name]; ok {
		_ = d.timer.Stop()
		delete(s.once, name)
		removed = true
	}
	s.tmu.Unlock()

	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// removeScheduleLocked drops defs named name and unregisters them from cron. Call with s.mu held.
func (s *Service) removeScheduleLocked(name string) bool {
	removed := false
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defs := make([]scheduleDef, len(s.defs))
	copy(defs, s.defs)
	c := s.c
	loc := s.loc
	s.mu.Unlock()
	if loc == nil {
		loc = time.Local
	}

	snap := Snapshot{Timezone: loc.String()}
	for _, d := range defs {
		it := ScheduleInfo{Name: d.name, Every: d.every}
		if c != nil && d.entryID != 0 {
			e := c.Entry(d.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		snap.Schedules = append(snap.Schedules, it)
	}

	s.tmu.Lock()
	for name, d := range s.once {
		snap.Pending = append(snap.Pending, PendingInfo{Name: name, At: d.at})
	}
	s.tmu.Unlock()
	sort.Slice(snap.Pending, func(i, j int) bool { return snap.Pending[i].Name < snap.Pending[j].Name })
	return snap
}
