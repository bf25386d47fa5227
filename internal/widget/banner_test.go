package widget

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type visibilityLog struct {
	mu     sync.Mutex
	events []bool
}

func (l *visibilityLog) record(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, v)
}

func (l *visibilityLog) all() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.events...)
}

func TestBannerShowThenExpire(t *testing.T) {
	sched := &fakeScheduler{}
	var log visibilityLog
	b := NewBanner(sched, 10*time.Second, log.record)

	b.Show()
	assert.True(t, b.Visible())

	sched.Advance(10 * time.Second)
	assert.False(t, b.Visible())
	assert.Equal(t, []bool{true, false}, log.all())
}

func TestBannerShowRestartsSingleTimer(t *testing.T) {
	sched := &fakeScheduler{}
	b := NewBanner(sched, 10*time.Second, nil)

	b.Show()
	sched.Advance(9 * time.Second)
	b.Show()
	b.Show()
	assert.Equal(t, 1, sched.Pending())

	sched.Advance(9 * time.Second)
	assert.True(t, b.Visible())
	sched.Advance(time.Second)
	assert.False(t, b.Visible())
	assert.Zero(t, sched.Pending())
}

func TestBannerHideCancelsTimer(t *testing.T) {
	sched := &fakeScheduler{}
	var log visibilityLog
	b := NewBanner(sched, time.Second, log.record)

	b.Hide()
	assert.Empty(t, log.all(), "hiding a hidden banner is silent")

	b.Show()
	b.Hide()
	assert.Zero(t, sched.Pending())
	assert.False(t, b.Visible())

	sched.Advance(time.Minute)
	assert.Equal(t, []bool{true, false}, log.all())
}

func TestBannerIgnoresSupersededExpiry(t *testing.T) {
	var log visibilityLog
	b := NewBanner(RealScheduler{}, time.Hour, log.record)
	b.Show()

	// a timer that fired after being superseded must not hide the new display
	b.mu.Lock()
	stale := b.gen
	b.mu.Unlock()
	b.Show()
	b.expire(stale)

	assert.True(t, b.Visible())
	b.Hide()
}

func TestBannerRealScheduler(t *testing.T) {
	var log visibilityLog
	b := NewBanner(RealScheduler{}, 20*time.Millisecond, log.record)

	b.Show()
	require.Eventually(t, func() bool { return !b.Visible() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false}, log.all())
}
