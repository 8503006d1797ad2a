package profiler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Profiler tracks frame rate, evaluated poses and memory statistics for performance monitoring.
// Every tick feeds Prometheus collectors on the profiler's own registry; a summary is logged at a
// configurable interval.
type Profiler struct {
	mu sync.Mutex

	logger *slog.Logger
	now    func() time.Time

	frameCount     int
	poseCount      int
	lastTime       time.Time
	lastTick       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	registry      *prometheus.Registry
	frames        prometheus.Counter
	poses         prometheus.Counter
	frameDuration prometheus.Histogram
	heapBytes     prometheus.Gauge
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second and the logger to a no-op logger.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions to configure the Profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         slog.New(slog.DiscardHandler),
		now:            time.Now,
		updateInterval: time.Second,
		registry:       prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oxyanim_frames_total",
			Help: "Total number of animation frames ticked",
		}),
		poses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oxyanim_poses_total",
			Help: "Total number of instance poses evaluated",
		}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oxyanim_frame_duration_seconds",
			Help:    "Wall time between consecutive frame ticks",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		heapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oxyanim_heap_alloc_bytes",
			Help: "Bytes of allocated heap objects at the last stats interval",
		}),
	}

	for _, option := range options {
		option(p)
	}

	p.registry.MustRegister(p.frames, p.poses, p.frameDuration, p.heapBytes)
	p.lastTime = p.now()
	p.lastTick = p.lastTime
	return p
}

// Registry returns the registry holding the profiler's collectors.
func (p *Profiler) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns an HTTP handler exposing the profiler's metrics in the Prometheus text format.
func (p *Profiler) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// AddPoses records n evaluated instance poses for the current frame.
func (p *Profiler) AddPoses(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.poseCount += n
	p.mu.Unlock()
	p.poses.Add(float64(n))
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, poses per second, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	currentTime := p.now()
	p.frames.Inc()
	p.frameDuration.Observe(currentTime.Sub(p.lastTick).Seconds())
	p.lastTick = currentTime

	p.frameCount++
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	posesPerSec := float64(p.poseCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	p.heapBytes.Set(float64(p.memStats.Alloc))

	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	p.logger.Info("profiler",
		"fps", fps,
		"poses_per_sec", posesPerSec,
		"heap_mb", allocMB,
		"alloc_rate_mb_s", allocRateMB,
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"sys_mb", sysMB,
	)

	p.frameCount = 0
	p.poseCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Serve exposes Handler on addr under /metrics until ctx is cancelled.
//
// Parameters:
//   - ctx: cancelling it shuts the server down
//   - addr: the listen address, e.g. ":2112"
//
// Returns:
//   - error: the listen error, or nil after a clean shutdown
func (p *Profiler) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
