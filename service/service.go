// Package service manages named framework services with ordered
// startup and reverse-order shutdown.
package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/logger"
)

// Service is one managed unit.
type Service interface {
	Name() string
	OnLoad(ctx context.Context) error
	OnClose(ctx context.Context) error
}

// Option tweaks a registration.
type Option func(*entry)

// Lazy defers loading until the service is first requested.
func Lazy() Option {
	return func(e *entry) { e.lazy = true }
}

// Requires declares services that must be loaded first.
func Requires(names ...string) Option {
	return func(e *entry) { e.requires = append(e.requires, names...) }
}

type entry struct {
	svc      Service
	lazy     bool
	requires []string
	loaded   bool
}

// Manager registers and runs services. Load order follows declared
// requirements, ties broken by registration order; CloseAll runs in
// reverse of the actual load order.
type Manager struct {
	mu        sync.Mutex
	order     []string
	entries   map[string]*entry
	loadOrder []string
	log       *zap.SugaredLogger
}

// NewManager builds an empty manager.
func NewManager() *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		log:     logger.Named("service"),
	}
}

// Register adds a service under its name. Duplicates are rejected.
func (m *Manager) Register(svc Service, opts ...Option) error {
	name := svc.Name()
	if name == "" {
		return errors.New("service has an empty name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[name]; ok {
		return errors.Newf("service %q already registered", name)
	}
	e := &entry{svc: svc}
	for _, opt := range opts {
		opt(e)
	}
	m.entries[name] = e
	m.order = append(m.order, name)
	return nil
}

// Get returns a service by name, loading it (and its requirements)
// first when it is lazy and not yet loaded.
func (m *Manager) Get(ctx context.Context, name string) (Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "service %q", name)
	}
	if !e.loaded {
		if err := m.loadLocked(ctx, name, map[string]bool{}); err != nil {
			return nil, err
		}
	}
	return e.svc, nil
}

// LoadAll loads every eager service in dependency order. The first
// failure aborts and is returned; already-loaded services stay up.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.order {
		if m.entries[name].lazy {
			continue
		}
		if err := m.loadLocked(ctx, name, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

// loadLocked loads name after its requirements, detecting requirement
// cycles. Callers hold m.mu.
func (m *Manager) loadLocked(ctx context.Context, name string, visiting map[string]bool) error {
	e, ok := m.entries[name]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "required service %q", name)
	}
	if e.loaded {
		return nil
	}
	if visiting[name] {
		return errors.Newf("service requirement cycle through %q", name)
	}
	visiting[name] = true
	for _, req := range e.requires {
		if err := m.loadLocked(ctx, req, visiting); err != nil {
			return err
		}
	}
	delete(visiting, name)

	if err := e.svc.OnLoad(ctx); err != nil {
		return errors.Wrapf(err, "loading service %q", name)
	}
	e.loaded = true
	m.loadOrder = append(m.loadOrder, name)
	m.log.Debugw("Service loaded", "service", name)
	return nil
}

// CloseAll closes loaded services in reverse load order. A failing
// close is logged and does not stop the rest.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.loadOrder) - 1; i >= 0; i-- {
		name := m.loadOrder[i]
		e := m.entries[name]
		if !e.loaded {
			continue
		}
		if err := e.svc.OnClose(ctx); err != nil {
			m.log.Warnw("Service close failed", "service", name, "error", err.Error())
		}
		e.loaded = false
	}
	m.loadOrder = m.loadOrder[:0]
}

// Loaded reports whether a service is currently loaded.
func (m *Manager) Loaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	return ok && e.loaded
}
