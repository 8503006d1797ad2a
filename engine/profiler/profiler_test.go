package profiler_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/engine/profiler"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestProfiler(t *testing.T) (*profiler.Profiler, *fakeClock, *bytes.Buffer) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	var logs bytes.Buffer
	p := profiler.NewProfiler(
		profiler.WithClock(clock.now),
		profiler.WithUpdateInterval(time.Second),
		profiler.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	return p, clock, &logs
}

func TestTickLogsOncePerInterval(t *testing.T) {
	p, clock, logs := newTestProfiler(t)

	for range 3 {
		clock.advance(250 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	assert.Empty(t, logs.String())

	clock.advance(250 * time.Millisecond)
	p.AddPoses(30)
	assert.True(t, p.Tick())
	assert.Contains(t, logs.String(), "msg=profiler")
	assert.Contains(t, logs.String(), "fps=4")
	assert.Contains(t, logs.String(), "poses_per_sec=30")

	// The window restarts after logging.
	clock.advance(100 * time.Millisecond)
	assert.False(t, p.Tick())
}

func TestTickFeedsCollectors(t *testing.T) {
	p, clock, _ := newTestProfiler(t)

	for range 3 {
		clock.advance(10 * time.Millisecond)
		p.AddPoses(4)
		p.Tick()
	}
	p.AddPoses(0)
	p.AddPoses(-2)

	assert.Equal(t, 1, testutil.CollectAndCount(p.Registry(), "oxyanim_frame_duration_seconds"))
	families, err := p.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetHistogram() != nil:
			values[mf.GetName()] = float64(m.GetHistogram().GetSampleCount())
		}
	}
	assert.Equal(t, 3.0, values["oxyanim_frames_total"])
	assert.Equal(t, 12.0, values["oxyanim_poses_total"])
	assert.Equal(t, 3.0, values["oxyanim_frame_duration_seconds"])
}

func TestHandlerServesMetrics(t *testing.T) {
	p, clock, _ := newTestProfiler(t)
	clock.advance(time.Second)
	p.Tick()

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "oxyanim_frames_total 1")
	assert.Contains(t, string(body), "oxyanim_heap_alloc_bytes")
}

func TestProfilersDoNotShareRegistries(t *testing.T) {
	a := profiler.NewProfiler()
	b := profiler.NewProfiler()
	a.Tick()

	assert.NotSame(t, a.Registry(), b.Registry())
	assert.Equal(t, 1, testutil.CollectAndCount(a.Registry(), "oxyanim_frames_total"))
}
