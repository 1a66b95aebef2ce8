package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"slotwatch/internal/eventbus"
	logx "slotwatch/pkg/logx"
)

type Config struct {
	Timezone string // IANA TZ, e.g. "Asia/Yerevan"; empty means local
}

type scheduleDef struct {
	name    string
	every   time.Duration
	offset  time.Duration
	job     func(ctx context.Context)
	entryID cron.EntryID
}

type onceDef struct {
	at    time.Time
	ver   uint64
	timer *time.Timer
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	c      *cron.Cron
	defs   []scheduleDef
	runCtx context.Context

	// one-shot timers, keyed by name
	tmu     sync.Mutex
	once    map[string]*onceDef
	onceVer map[string]uint64
	stopped bool
	onceWG  sync.WaitGroup
}

type ScheduleInfo struct {
	Name  string
	Every time.Duration
	Next  time.Time
	Prev  time.Time
}

type PendingInfo struct {
	Name string
	At   time.Time
}

type Snapshot struct {
	Timezone  string
	Schedules []ScheduleInfo
	Pending   []PendingInfo
}
