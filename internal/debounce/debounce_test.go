package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestTrailingEdgeOnly(t *testing.T) {
	var r recorder
	d := New(30*time.Millisecond, r.record)
	for _, s := range []string{"c", "ce", "cen", "cent"} {
		d.Trigger(s)
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, d.Pending())
	require.Eventually(t, func() bool { return len(r.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"cent"}, r.snapshot())
	assert.False(t, d.Pending())
}

func TestSeparateBurstsFireSeparately(t *testing.T) {
	var r recorder
	d := New(20*time.Millisecond, r.record)
	d.Trigger("a")
	require.Eventually(t, func() bool { return len(r.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	d.Trigger("b")
	require.Eventually(t, func() bool { return len(r.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, r.snapshot())
}

func TestCancel(t *testing.T) {
	var r recorder
	d := New(20*time.Millisecond, r.record)
	d.Trigger("a")
	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, r.snapshot())
}
