package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Report is one profiler sample.
type Report struct {
	FPS         float64
	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GC          uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the logger at most once per interval.
type Profiler struct {
	logger         logrus.FieldLogger
	sometimes      *rate.Sometimes
	frameCount     int
	lastTime       time.Time
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler. The first Tick always reports.
//
// Parameters:
//   - logger: destination for reports; nil discards them
//   - interval: minimum time between reports, 1 second when not positive
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger logrus.FieldLogger, interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		logger:    common.ComponentLogger(logger, "profiler"),
		sometimes: &rate.Sometimes{Interval: interval},
		lastTime:  time.Now(),
	}
}

// Tick should be called once per frame. When the interval has elapsed it samples memory statistics and logs them
// at Info together with fields, which callers use for staging counters.
//
// Parameters:
//   - fields: extra fields for the report line
//
// Returns:
//   - Report: the sample, zero when nothing was reported
//   - bool: true if stats were logged this tick
func (p *Profiler) Tick(fields logrus.Fields) (Report, bool) {
	p.frameCount++
	var report Report
	reported := false
	p.sometimes.Do(func() {
		report = p.sample()
		reported = true
	})
	if !reported {
		return Report{}, false
	}

	p.logger.WithFields(fields).WithFields(logrus.Fields{
		"fps":           report.FPS,
		"heap_mb":       report.HeapMB,
		"alloc_rate_mb": report.AllocRateMB,
		"sys_mb":        report.SysMB,
		"gc":            report.GC,
		"gc_last_us":    report.LastPauseUs,
		"gc_max_us":     report.MaxPauseUs,
	}).Info("frame stats")
	return report, true
}

func (p *Profiler) sample() Report {
	now := time.Now()
	elapsed := max(now.Sub(p.lastTime).Seconds(), 1e-9)

	runtime.ReadMemStats(&p.memStats)
	r := Report{
		FPS:         float64(p.frameCount) / elapsed,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed,
		GC:          p.memStats.NumGC,
	}

	// PauseNs is a circular buffer of the last 256 pauses
	if gc := r.GC; gc > 0 {
		r.LastPauseUs = p.memStats.PauseNs[(gc-1)%256] / 1000
		start := p.lastGCCount
		if gc-start > 256 {
			start = gc - 256
		}
		for i := start; i < gc; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.frameCount = 0
	p.lastTime = now
	p.lastGCCount = r.GC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return r
}
