package ui

import (
	"context"
	"math"
	"time"
)

// CountDuration is the length of the stat count-up animation.
const CountDuration = 2 * time.Second

// CountUp animates an integer from 0 to Target with a cubic ease-out.
type CountUp struct {
	Target   int           `json:"target"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// EaseOutCubic maps progress p in [0,1] to 1-(1-p)^3.
func EaseOutCubic(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	return 1 - math.Pow(1-p, 3)
}

// Progress is the elapsed fraction at t, clamped to [0,1].
func (c CountUp) Progress(t time.Time) float64 {
	if c.Start.IsZero() {
		return 0
	}
	if c.Duration <= 0 {
		return 1
	}
	p := float64(t.Sub(c.Start)) / float64(c.Duration)
	return math.Max(0, math.Min(1, p))
}

// ValueAt is round(Target * ease(progress)).
func (c CountUp) ValueAt(t time.Time) int {
	return int(math.Round(float64(c.Target) * EaseOutCubic(c.Progress(t))))
}

// Done reports whether the animation has reached its target at t.
func (c CountUp) Done(t time.Time) bool { return c.Progress(t) >= 1 }

// Animate calls fn with each frame value until the target is reached or
// ctx ends. The last call always carries Target unless ctx ended first.
func Animate(ctx context.Context, c CountUp, frame time.Duration, fn func(int)) {
	if frame <= 0 {
		frame = 16 * time.Millisecond
	}
	tk := time.NewTicker(frame)
	defer tk.Stop()
	last := -1
	for {
		now := time.Now()
		if v := c.ValueAt(now); v != last {
			fn(v)
			last = v
		}
		if c.Done(now) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}
	}
}
