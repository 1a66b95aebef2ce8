package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedInterval struct {
	every, offset time.Duration
	job           func(ctx context.Context)
}

type fakeIntervals struct {
	jobs map[string]recordedInterval
}

func (f *fakeIntervals) AddInterval(name string, every, offset time.Duration, job func(ctx context.Context)) error {
	if f.jobs == nil {
		f.jobs = map[string]recordedInterval{}
	}
	f.jobs[name] = recordedInterval{every: every, offset: offset, job: job}
	return nil
}

func TestRegisterPollingStaggers(t *testing.T) {
	h := newHarness(t, 3)
	var s fakeIntervals
	require.NoError(t, h.o.RegisterPolling(&s))

	require.Len(t, s.jobs, 3)
	assert.Equal(t, time.Duration(0), s.jobs["poll.1"].offset)
	assert.Equal(t, 10*time.Second, s.jobs["poll.2"].offset)
	assert.Equal(t, 20*time.Second, s.jobs["poll.3"].offset)
	assert.Equal(t, DefaultInterval, s.jobs["poll.3"].every)
}

func TestPollJobSkipsLimitedAfterFirstRun(t *testing.T) {
	h := newHarness(t, 2)
	h.up.answer(psn(0), lateBody)
	h.up.answer(psn(1), lateBody)
	var s fakeIntervals
	require.NoError(t, h.o.RegisterPolling(&s))

	h.o.Limits().MarkLimited(1)
	job := s.jobs["poll.2"].job

	// first tick runs even though account 2 is limited; the tracker redirects it
	job(context.Background())
	assert.Equal(t, 1, h.up.queryCount())

	job(context.Background())
	assert.Equal(t, 1, h.up.queryCount())
}
