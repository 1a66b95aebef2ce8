package orchestrator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotwatch/internal/portal"
	logx "slotwatch/pkg/logx"
)

func newTracker(t *testing.T, n int) (*LimitTracker, *fakeClock) {
	t.Helper()
	creds := make([]portal.Credentials, n)
	for i := range creds {
		creds[i] = portal.Credentials{PSN: fmt.Sprint(i), Phone: fmt.Sprint(5550 + i)}
	}
	reg, err := NewRegistry(creds)
	require.NoError(t, err)
	clk := newFakeClock()
	return NewLimitTracker(reg, clk, 0, logx.Nop()), clk
}

func TestLimitMarksExpireAfterTTL(t *testing.T) {
	tr, clk := newTracker(t, 3)

	assert.False(t, tr.IsLimited(0))
	tr.MarkLimited(0)
	assert.True(t, tr.IsLimited(0))
	assert.False(t, tr.IsLimited(1))

	clk.Advance(12 * time.Hour)
	tr.MarkLimited(1)
	clk.Advance(12*time.Hour - time.Second)
	assert.True(t, tr.IsLimited(0))

	clk.Advance(time.Second)
	assert.False(t, tr.IsLimited(0))
	assert.True(t, tr.IsLimited(1))

	clk.Advance(12 * time.Hour)
	assert.False(t, tr.IsLimited(1))
}

func TestNextAvailable(t *testing.T) {
	tests := []struct {
		name      string
		limited   []int
		preferred int
		want      int
	}{
		{name: "preferred free", limited: nil, preferred: 2, want: 2},
		{name: "scan forward", limited: []int{1}, preferred: 1, want: 2},
		{name: "wrap around", limited: []int{2, 3}, preferred: 2, want: 0},
		{name: "skip several", limited: []int{0, 1, 2}, preferred: 0, want: 3},
		{name: "all limited keeps preferred", limited: []int{0, 1, 2, 3}, preferred: 1, want: 1},
		{name: "out of range treated as first", limited: nil, preferred: 9, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newTracker(t, 4)
			for _, i := range tt.limited {
				tr.MarkLimited(i)
			}
			got := tr.NextAvailable(tt.preferred)
			assert.Equal(t, tt.want, got)
			if len(tt.limited) < 4 {
				assert.False(t, tr.IsLimited(got))
			}
		})
	}
}

func TestResetAndSnapshot(t *testing.T) {
	tr, clk := newTracker(t, 2)
	tr.MarkLimited(0)
	tr.MarkLimited(1)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.True(t, snap[0].Limited)
	assert.Equal(t, clk.Now().Add(DefaultLimitTTL), snap[0].ExpiresAt)

	assert.True(t, tr.Reset(0))
	assert.False(t, tr.Reset(0))
	assert.False(t, tr.IsLimited(0))
	assert.Equal(t, 1, tr.ResetAll())
	assert.False(t, tr.IsLimited(1))
}
