package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// staggeredSchedule fires once at first, then follows base.
type staggeredSchedule struct {
	base  cron.Schedule
	first time.Time
	used  atomic.Bool
}

func (s *staggeredSchedule) Next(t time.Time) time.Time {
	if !s.used.Swap(true) {
		if s.first.Before(t) {
			return t
		}
		return s.first
	}
	return s.base.Next(t)
}

func makeStaggeredSchedule(every, offset time.Duration, now time.Time) cron.Schedule {
	if offset < 0 {
		offset = 0
	}
	return &staggeredSchedule{base: cron.Every(every), first: now.Add(offset)}
}
