package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Runner paces the manager against the wall clock.
type Runner struct {
	Interval time.Duration // Base tick interval (default 1 second); set before Run

	mu    sync.Mutex
	speed float64 // Multiplier: 1.0 = real-time, 0 = hold

	mgr  *Manager
	quit chan struct{}
}

// NewRunner creates a runner with default pacing.
func NewRunner(mgr *Manager) *Runner {
	return &Runner{
		Interval: time.Second,
		speed:    1.0,
		mgr:      mgr,
		quit:     make(chan struct{}),
	}
}

// Speed returns the current speed multiplier.
func (r *Runner) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}

// SetSpeed changes the speed multiplier. Safe to call while Run is looping.
func (r *Runner) SetSpeed(speed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speed = speed
}

// Run drives the manager until Stop is called. Blocks; run it on its own
// goroutine. While the manager is paused or stopped the loop idles.
func (r *Runner) Run() {
	slog.Info("runner started", "interval", r.Interval, "speed", r.Speed())

	for {
		select {
		case <-r.quit:
			slog.Info("runner stopped", "tick", r.mgr.Tick())
			return
		default:
		}

		speed := r.Speed()
		if speed <= 0 || r.mgr.Status() != StatusRunning {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		r.mgr.Step()

		// Sleep out the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(r.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}
}

// Stop ends the loop after the current tick.
func (r *Runner) Stop() {
	select {
	case <-r.quit:
	default:
		close(r.quit)
	}
}
