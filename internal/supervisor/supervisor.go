// Package supervisor runs the playback loops as independent tasks and
// reports the first one that fails.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

// Task is a long-running loop. Run returns only on failure or when ctx is
// cancelled.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// State of a supervised task.
type State string

const (
	Pending State = "pending"
	Running State = "running"
	Stopped State = "stopped"
	Failed  State = "failed"
)

// TaskStatus is a snapshot of one task.
type TaskStatus struct {
	Name    string    `json:"name"`
	RunID   string    `json:"run_id"`
	State   State     `json:"state"`
	Started time.Time `json:"started"`
	Error   string    `json:"error,omitempty"`
}

// Failure is a task that ended on its own.
type Failure struct {
	Task  string
	RunID string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("task %s (run %s) failed: %v", f.Task, f.RunID, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

type entry struct {
	task   Task
	status TaskStatus
}

// Supervisor owns a set of tasks.
type Supervisor struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	entries []*entry
}

func New(logger zerolog.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// Add registers a task. Tasks added after Run has started are ignored.
func (s *Supervisor) Add(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{
		task:   t,
		status: TaskStatus{Name: t.Name(), RunID: uuid.NewString(), State: Pending},
	})
}

// Statuses returns every task's status in the order they were added.
func (s *Supervisor) Statuses() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TaskStatus, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.status
	}
	return out
}

// Run starts every task and blocks until ctx is cancelled or one of them
// ends. A task that returns, panics, or returns nil while ctx is live is a
// failure: Run cancels the others, waits for them and returns a *Failure.
// On cancellation Run returns nil once every task has stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.RLock()
	entries := append([]*entry(nil), s.entries...)
	s.mu.RUnlock()
	if len(entries) == 0 {
		return errors.New("supervisor: no tasks")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failures := make(chan *Failure, len(entries))
	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			s.runOne(ctx, e, failures)
		}(e)
	}

	var first *Failure
	select {
	case <-ctx.Done():
	case first = <-failures:
		s.logger.Error().Err(first.Err).Str("task", first.Task).Str("run_id", first.RunID).Msg("task failed, stopping")
		cancel()
	}
	wg.Wait()

	if first != nil {
		return first
	}
	return nil
}

func (s *Supervisor) runOne(ctx context.Context, e *entry, failures chan<- *Failure) {
	s.setStatus(e, func(st *TaskStatus) {
		st.State = Running
		st.Started = time.Now()
	})
	log := s.logger.With().Str("task", e.status.Name).Str("run_id", e.status.RunID).Logger()
	log.Info().Msg("task started")

	var err error
	var pc panics.Catcher
	pc.Try(func() { err = e.task.Run(ctx) })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}

	if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		s.setStatus(e, func(st *TaskStatus) { st.State = Stopped })
		log.Info().Msg("task stopped")
		return
	}
	if err == nil {
		err = errors.New("exited unexpectedly")
	}
	s.setStatus(e, func(st *TaskStatus) {
		st.State = Failed
		st.Error = err.Error()
	})
	failures <- &Failure{Task: e.status.Name, RunID: e.status.RunID, Err: err}
}

func (s *Supervisor) setStatus(e *entry, fn func(*TaskStatus)) {
	s.mu.Lock()
	fn(&e.status)
	s.mu.Unlock()
}
