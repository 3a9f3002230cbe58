package ui

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEaseOutCubic(t *testing.T) {
	assert.Equal(t, 0.0, EaseOutCubic(0))
	assert.Equal(t, 1.0, EaseOutCubic(1))
	assert.InDelta(t, 0.875, EaseOutCubic(0.5), 1e-12)
	assert.Equal(t, 1.0, EaseOutCubic(3))
}

func TestCountUpValues(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := CountUp{Target: 40, Start: start, Duration: 2 * time.Second}
	assert.Equal(t, 0, c.ValueAt(start))
	assert.Equal(t, 35, c.ValueAt(start.Add(time.Second)))
	assert.Equal(t, 40, c.ValueAt(start.Add(2*time.Second)))
	assert.Equal(t, 40, c.ValueAt(start.Add(time.Hour)))

	prev := 0
	for ms := 0; ms <= 2000; ms += 50 {
		v := c.ValueAt(start.Add(time.Duration(ms) * time.Millisecond))
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
	assert.Zero(t, CountUp{Target: 10}.ValueAt(start))
}

func TestAnimateEndsOnTarget(t *testing.T) {
	c := CountUp{Target: 12, Start: time.Now(), Duration: 40 * time.Millisecond}
	var frames []int
	Animate(context.Background(), c, 5*time.Millisecond, func(v int) { frames = append(frames, v) })
	require.NotEmpty(t, frames)
	assert.Equal(t, 12, frames[len(frames)-1])
}

func TestAnimateStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := CountUp{Target: 12, Start: time.Now(), Duration: time.Hour}
	n := 0
	Animate(ctx, c, time.Millisecond, func(int) { n++ })
	assert.Equal(t, 1, n)
}

func TestPageSnapshotDrainsAlerts(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := NewPage("ar", "rtl")
	p.now = func() time.Time { return now }
	p.SetGrid("<div>x</div>")
	p.StartCount(2)
	p.Alert("position refused")

	now = now.Add(CountDuration)
	s := p.Snapshot()
	assert.Equal(t, "<div>x</div>", s.Grid)
	assert.Equal(t, uint64(1), s.GridVersion)
	assert.Equal(t, 2, s.Stat)
	assert.Equal(t, "rtl", s.Dir)
	require.Len(t, s.Alerts, 1)
	assert.Equal(t, "position refused", s.Alerts[0].Text)

	assert.Empty(t, p.Snapshot().Alerts)
}
