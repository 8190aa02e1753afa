package schedule

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler arms cancellable one-shot timers keyed by request id and runs a
// periodic recovery sweep. Each task carries an atomic claimed flag: whoever
// flips it first (the timer, a Cancel, or the sweep re-arming after a crash)
// owns the task, which keeps execution at-most-once under races.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*task

	cron *cron.Cron
	log  zerolog.Logger
}

type task struct {
	timer   *time.Timer
	claimed atomic.Bool
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*task),
		log:   log.With().Str("component", "scheduler").Logger(),
	}
}

// Schedule arms fn to run once after delay. Returns false if a task for the
// key is already armed. A zero or negative delay runs fn synchronously.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) bool {
	if delay <= 0 {
		fn()
		return true
	}

	s.mu.Lock()
	if _, exists := s.tasks[key]; exists {
		s.mu.Unlock()
		return false
	}
	// The timer is assigned before the task is published in the map, so a
	// concurrent Cancel never observes a task with a nil timer.
	t := &task{}
	t.timer = time.AfterFunc(delay, func() {
		if !t.claimed.CompareAndSwap(false, true) {
			return
		}
		s.remove(key)
		fn()
	})
	s.tasks[key] = t
	s.mu.Unlock()

	s.log.Debug().Str("key", key).Dur("delay", delay).Msg("task scheduled")
	return true
}

// Cancel prevents a pending task from firing. Returns true if the task was
// still pending and is now cancelled; false if it already ran, is running,
// or never existed. Cancellation after execution started does not interrupt it.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	t, ok := s.tasks[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if !t.claimed.CompareAndSwap(false, true) {
		return false
	}
	t.timer.Stop()
	s.remove(key)
	s.log.Debug().Str("key", key).Msg("task cancelled")
	return true
}

// Pending reports whether a task for the key is still armed.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

func (s *Scheduler) remove(key string) {
	s.mu.Lock()
	delete(s.tasks, key)
	s.mu.Unlock()
}

// StartSweep runs sweep on the given interval until Stop. The sweep re-arms
// persisted scheduled work whose fire time passed while the process was down.
func (s *Scheduler) StartSweep(every time.Duration, sweep func()) {
	if s.cron != nil {
		return
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc("@every "+every.String(), sweep)
	if err != nil {
		s.log.Error().Err(err).Msg("could not register sweep job")
		return
	}
	s.cron.Start()
}

// Stop halts the sweep job and drops all pending timers without running them.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.tasks {
		if t.claimed.CompareAndSwap(false, true) {
			t.timer.Stop()
		}
		delete(s.tasks, key)
	}
}
