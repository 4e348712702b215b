package pipeline

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// fpsWindow is the number of recent frame intervals averaged for the FPS estimate
const fpsWindow = 30

// Stats tracks diagnostic counters for the frame loop. Nothing in here feeds
// back into targeting decisions.
type Stats struct {
	mu sync.Mutex

	frames        int64
	published     int64
	noTarget      int64
	skipped       int64
	publishErrors int64

	detectTimeTotal time.Duration
	detectCount     int64

	lastFrameTime  time.Time
	intervals      []float64 // Seconds between consecutive frames, ring buffer
	intervalIndex  int
	lastReportTime time.Time
}

// StatsSnapshot is a copy of the counters at one point in time
type StatsSnapshot struct {
	Frames        int64
	Published     int64
	NoTarget      int64
	Skipped       int64
	PublishErrors int64
	FPS           float64
	AvgDetect     time.Duration
}

// NewStats creates a new statistics tracker
func NewStats() *Stats {
	return &Stats{
		intervals:      make([]float64, 0, fpsWindow),
		lastReportTime: time.Now(),
	}
}

// UpdateFPS records a frame arrival at now and returns the rolling estimate
func (s *Stats) UpdateFPS(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	if !s.lastFrameTime.IsZero() {
		if dt := now.Sub(s.lastFrameTime).Seconds(); dt > 0 {
			if len(s.intervals) < fpsWindow {
				s.intervals = append(s.intervals, dt)
			} else {
				s.intervals[s.intervalIndex] = dt
				s.intervalIndex = (s.intervalIndex + 1) % fpsWindow
			}
		}
	}
	s.lastFrameTime = now
	return s.fpsLocked()
}

func (s *Stats) fpsLocked() float64 {
	if len(s.intervals) == 0 {
		return 0
	}
	mean := stat.Mean(s.intervals, nil)
	if mean <= 0 {
		return 0
	}
	return 1 / mean
}

// UpdateDetect records how long segmentation and extraction took
func (s *Stats) UpdateDetect(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectTimeTotal += d
	s.detectCount++
}

// UpdateOutcome counts a finished frame by its final state
func (s *Stats) UpdateOutcome(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch state {
	case Published:
		s.published++
	case NoTarget:
		s.noTarget++
	}
}

// UpdateSkipped counts a frame that failed processing
func (s *Stats) UpdateSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
}

// UpdatePublishError counts a sink failure
func (s *Stats) UpdatePublishError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishErrors++
}

// Snapshot returns the current counters
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Frames:        s.frames,
		Published:     s.published,
		NoTarget:      s.noTarget,
		Skipped:       s.skipped,
		PublishErrors: s.publishErrors,
		FPS:           s.fpsLocked(),
	}
	if s.detectCount > 0 {
		snap.AvgDetect = s.detectTimeTotal / time.Duration(s.detectCount)
	}
	return snap
}

// ReportDue reports whether interval has passed since the last report, and
// if so restarts the report clock.
func (s *Stats) ReportDue(now time.Time, interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastReportTime) < interval {
		return false
	}
	s.lastReportTime = now
	return true
}
