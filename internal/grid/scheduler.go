package grid

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Scheduler coalesces bursts of render triggers into one render.
//
// Each Trigger restarts the debounce window; only the last trigger of a burst
// renders. The first render after construction or Invalidate is a rebuild,
// every later one a patch.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The render callback runs on a clock goroutine, outside the scheduler lock.
type Scheduler struct {
	clock  clock.WithDelayedExecution
	render func(Mode)

	mu       sync.Mutex
	delay    time.Duration
	timer    clock.Timer
	gen      uint64 // bumped on every Trigger and Stop
	rendered bool   // a render ran since construction or Invalidate
	stopped  bool
}

// NewScheduler creates a scheduler that calls render after delay of quiet.
// A nil clock uses the real clock.
func NewScheduler(clk clock.WithDelayedExecution, delay time.Duration, render func(Mode)) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Scheduler{
		clock:  clk,
		render: render,
		delay:  delay,
	}
}

// Trigger (re)starts the debounce window.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
}

// fire runs the render for generation gen unless it was superseded.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	mode := ModePatch
	if !s.rendered {
		mode = ModeRebuild
		s.rendered = true
	}
	s.mu.Unlock()

	s.render(mode)
}

// Invalidate makes the next render a rebuild. Called on configuration change.
func (s *Scheduler) Invalidate() {
	s.mu.Lock()
	s.rendered = false
	s.mu.Unlock()
}

// SetDelay changes the debounce window for subsequent triggers.
func (s *Scheduler) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// Pending reports whether a render is scheduled.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Stop cancels any pending render. Later triggers are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
