// Package autoadvance runs delayed, cancellable callbacks.
//
// The funnel UI moves on by itself from a few steps (the processing
// screens, block transitions) after a delay. A fired task does exactly
// what a click would: it calls the same sequencer method. Keeping the
// timers here leaves the state machine free of timing.
package autoadvance

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	statePending int32 = iota
	stateRunning
	stateFired
	stateCancelled
)

// Task is one scheduled callback.
type Task struct {
	timer   *time.Timer
	state   atomic.Int32
	done    chan struct{}
	release func()
}

// Cancel stops the task if it has not started. It reports whether the
// callback was prevented from running.
func (t *Task) Cancel() bool {
	if !t.state.CompareAndSwap(statePending, stateCancelled) {
		return false
	}
	// When the timer had already fired, its func still runs and releases.
	if t.timer.Stop() && t.release != nil {
		t.release()
	}
	close(t.done)
	return true
}

// Done is closed once the task has either run to completion or been cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Fired reports whether the callback ran to completion.
func (t *Task) Fired() bool { return t.state.Load() == stateFired }

// Scheduler creates tasks and can stop all of them at shutdown.
type Scheduler struct {
	mu      sync.Mutex
	pending map[*Task]struct{}
	running sync.WaitGroup
	stopped bool
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[*Task]struct{})}
}

// Schedule runs fn after delay unless the returned task is cancelled first.
// After Stop, Schedule returns an already-cancelled task.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) *Task {
	t := &Task{done: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		t.state.Store(stateCancelled)
		close(t.done)
		return t
	}
	s.pending[t] = struct{}{}
	s.running.Add(1)
	t.release = func() {
		s.forget(t)
		s.running.Done()
	}

	t.timer = time.AfterFunc(delay, func() {
		defer t.release()
		if !t.state.CompareAndSwap(statePending, stateRunning) {
			return
		}
		fn()
		t.state.Store(stateFired)
		close(t.done)
	})
	return t
}

func (s *Scheduler) forget(t *Task) {
	s.mu.Lock()
	delete(s.pending, t)
	s.mu.Unlock()
}

// Pending is the number of tasks not yet fired or cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for t := range s.pending {
		if t.state.Load() == statePending {
			n++
		}
	}
	return n
}

// Stop cancels every pending task and waits for running callbacks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	tasks := make([]*Task, 0, len(s.pending))
	for t := range s.pending {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
	s.running.Wait()
}
