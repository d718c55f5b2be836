// Package schedule runs named recurring tasks for plugins. Tasks carry
// an owner so a plugin unload can cancel everything it registered.
package schedule

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/logger"
)

type task struct {
	name  string
	owner string
	entry cron.EntryID
}

// Service wraps one cron runner with named, owner-tagged entries.
type Service struct {
	cron *cron.Cron
	log  *zap.SugaredLogger

	mu    sync.Mutex
	tasks map[string]*task
}

// NewService builds a stopped service; call Start before adding
// time-sensitive tasks.
func NewService() *Service {
	return &Service{
		cron:  cron.New(cron.WithSeconds()),
		log:   logger.Named("schedule"),
		tasks: make(map[string]*task),
	}
}

// Start begins running scheduled tasks.
func (s *Service) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running tasks to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// AddCron registers a task on a 6-field cron spec (with seconds).
// Duplicate names are rejected.
func (s *Service) AddCron(name, owner, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; ok {
		return errors.Newf("scheduled task %q already exists", name)
	}
	entry, err := s.cron.AddFunc(spec, s.wrap(name, fn))
	if err != nil {
		return errors.Wrapf(err, "parsing cron spec %q for task %q", spec, name)
	}
	s.tasks[name] = &task{name: name, owner: owner, entry: entry}
	s.log.Debugw("Scheduled task added", "task", name, "owner", owner, "spec", spec)
	return nil
}

// AddInterval registers a task firing every interval.
func (s *Service) AddInterval(name, owner string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return errors.Newf("task %q has a non-positive interval", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; ok {
		return errors.Newf("scheduled task %q already exists", name)
	}
	entry := s.cron.Schedule(cron.Every(interval), cron.FuncJob(s.wrap(name, fn)))
	s.tasks[name] = &task{name: name, owner: owner, entry: entry}
	s.log.Debugw("Scheduled task added", "task", name, "owner", owner, "interval", interval)
	return nil
}

// wrap adds panic containment around a task body.
func (s *Service) wrap(name string, fn func()) func() {
	return func() {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Errorw("Scheduled task panicked", "task", name, "panic", rec)
			}
		}()
		fn()
	}
}

// Cancel removes a task by name.
func (s *Service) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		return false
	}
	s.cron.Remove(t.entry)
	delete(s.tasks, name)
	return true
}

// CancelOwner removes every task the owner registered and returns how
// many were cancelled.
func (s *Service) CancelOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for name, t := range s.tasks {
		if t.owner != owner {
			continue
		}
		s.cron.Remove(t.entry)
		delete(s.tasks, name)
		removed++
	}
	if removed > 0 {
		s.log.Debugw("Scheduled tasks cancelled", "owner", owner, "count", removed)
	}
	return removed
}

// Names lists task names, optionally restricted to one owner ("" means
// all).
func (s *Service) Names(owner string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for name, t := range s.tasks {
		if owner == "" || t.owner == owner {
			out = append(out, name)
		}
	}
	return out
}
