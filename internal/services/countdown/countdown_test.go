package countdown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/presale-service/internal/models"
)

func TestCompute(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want Breakdown
	}{
		{name: "already ended", end: now.Add(-time.Hour), want: Breakdown{}},
		{name: "exactly now", end: now, want: Breakdown{}},
		{name: "sub-second remainder floors to zero", end: now.Add(999 * time.Millisecond), want: Breakdown{}},
		{name: "one second", end: now.Add(time.Second), want: Breakdown{Seconds: 1}},
		{
			name: "mixed",
			end:  now.Add(2*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second + 600*time.Millisecond),
			want: Breakdown{Days: 2, Hours: 3, Minutes: 4, Seconds: 5},
		},
		{name: "thirty days", end: now.AddDate(0, 0, 30), want: Breakdown{Days: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.end, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Total(), got.Total())
		})
	}
}

func TestCompute_Monotonic(t *testing.T) {
	start := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	end := start.Add(3*time.Hour + 17*time.Second)

	prev := Compute(end, start).Total()
	for step := time.Duration(0); step <= 4*time.Hour; step += 733 * time.Millisecond {
		cur := Compute(end, start.Add(step)).Total()
		assert.LessOrEqual(t, cur, prev, "step %s", step)
		assert.GreaterOrEqual(t, cur, int64(0))
		prev = cur
	}
	assert.Zero(t, prev)
}

func TestStart_NilOrInactiveEvent(t *testing.T) {
	called := false
	stop := Start(nil, time.Millisecond, nil, func(Breakdown) { called = true })
	stop()
	stop()

	ev := models.DefaultEvent(time.Now())
	ev.IsActive = false
	stop = Start(ev, time.Millisecond, nil, func(Breakdown) { called = true })
	stop()

	assert.False(t, called)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStart_FreezesAtZero(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
	ev := models.DefaultEvent(clock.Now())
	ev.EndDate = clock.Now().Add(3 * time.Second)

	var (
		mu    sync.Mutex
		ticks []Breakdown
	)
	stop := Start(ev, time.Millisecond, clock.Now, func(b Breakdown) {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, b)
		clock.Advance(time.Second)
	})
	defer stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) > 0 && ticks[len(ticks)-1].IsZero()
	}, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Breakdown{{Seconds: 3}, {Seconds: 2}, {Seconds: 1}, {}}, ticks)
	assert.Equal(t, clock.Now().Add(-4*time.Second), ev.StartDate, "event must not be mutated")
}

func TestStart_StopIsIdempotent(t *testing.T) {
	ev := models.DefaultEvent(time.Now())
	var count atomic.Int64
	stop := Start(ev, time.Millisecond, nil, func(Breakdown) { count.Add(1) })

	require.Eventually(t, func() bool { return count.Load() >= 3 }, time.Second, time.Millisecond)
	stop()
	stop()

	time.Sleep(10 * time.Millisecond)
	frozen := count.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, count.Load())
}

func TestStart_AlreadyEndedEmitsOnce(t *testing.T) {
	now := time.Now()
	ev := models.DefaultEvent(now.Add(-48 * time.Hour))
	ev.EndDate = now.Add(-time.Hour)

	var count atomic.Int64
	stop := Start(ev, time.Millisecond, nil, func(b Breakdown) {
		assert.True(t, b.IsZero())
		count.Add(1)
	})
	defer stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), count.Load())
}
