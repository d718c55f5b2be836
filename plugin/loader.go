package plugin

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nyabot/nyabot/api"
	"github.com/nyabot/nyabot/bus"
	"github.com/nyabot/nyabot/command"
	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/logger"
	"github.com/nyabot/nyabot/schedule"
	"github.com/nyabot/nyabot/service"
)

// Instance is one loaded (or failed) plugin.
type Instance struct {
	Manifest *Manifest
	State    State
	// Err is set when State is StateFailed.
	Err error

	plugin  Plugin
	runtime *Runtime
}

// LoaderOptions configure a Loader.
type LoaderOptions struct {
	// Dir is the plugin directory to scan.
	Dir string
	// DataDir hosts per-plugin workspaces.
	DataDir string
	// Whitelist, when non-empty, restricts loading to the named
	// plugins. Blacklist always excludes.
	Whitelist []string
	Blacklist []string
	Debug     bool

	Factories *FactoryRegistry
	Bus       *bus.EventBus
	API       *api.Caller
	Services  *service.Manager
	Schedule  *schedule.Service
	Commands  *command.Registry
}

// Loader drives the plugin lifecycle from discovery to unload.
type Loader struct {
	opts LoaderOptions
	log  *zap.SugaredLogger

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewLoader builds a loader. Factories defaults to the process-wide
// registry.
func NewLoader(opts LoaderOptions) *Loader {
	if opts.Factories == nil {
		opts.Factories = DefaultRegistry()
	}
	return &Loader{
		opts:      opts,
		log:       logger.Named("plugin"),
		instances: make(map[string]*Instance),
	}
}

// Discover scans the plugin directory for subdirectories carrying a
// manifest, applying the whitelist and blacklist. Unparsable manifests
// are logged and skipped.
func (l *Loader) Discover() (map[string]*Manifest, error) {
	entries, err := os.ReadDir(l.opts.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Manifest{}, nil
		}
		return nil, errors.Wrapf(err, "scanning plugin directory %s", l.opts.Dir)
	}

	manifests := make(map[string]*Manifest)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(l.opts.Dir, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
			continue
		}
		m, err := ReadManifest(dir)
		if err != nil {
			l.log.Warnw("Skipping plugin with bad manifest", "dir", dir, "error", err.Error())
			continue
		}
		if !l.admitted(m.Name) {
			l.log.Debugw("Plugin filtered out", "plugin", m.Name)
			continue
		}
		if prev, dup := manifests[m.Name]; dup {
			l.log.Warnw("Duplicate plugin name, keeping first",
				"plugin", m.Name, "kept", prev.Version, "ignored", m.Version)
			continue
		}
		manifests[m.Name] = m
	}
	return manifests, nil
}

func (l *Loader) admitted(name string) bool {
	for _, blocked := range l.opts.Blacklist {
		if blocked == name {
			return false
		}
	}
	if len(l.opts.Whitelist) == 0 {
		return true
	}
	for _, allowed := range l.opts.Whitelist {
		if allowed == name {
			return true
		}
	}
	return false
}

// LoadAll discovers, resolves and loads every admissible plugin.
// Per-plugin failures (bad versions, missing factories, OnLoad errors)
// are isolated; only a dependency cycle aborts the whole load.
func (l *Loader) LoadAll(ctx context.Context) error {
	manifests, err := l.Discover()
	if err != nil {
		return err
	}
	resolution, err := resolve(manifests)
	if err != nil {
		return err
	}

	l.mu.Lock()
	failed := make(map[string]error, len(resolution.Failed))
	for name, cause := range resolution.Failed {
		l.instances[name] = &Instance{Manifest: manifests[name], State: StateFailed, Err: cause}
		failed[name] = cause
		l.log.Warnw("Plugin failed resolution", "plugin", name, "error", cause.Error())
	}

	// Instantiate in topological order. Construction is lightweight.
	ready := make([]*Instance, 0, len(resolution.Order))
	for _, name := range resolution.Order {
		inst, err := l.instantiateLocked(manifests[name])
		if err != nil {
			l.instances[name] = &Instance{Manifest: manifests[name], State: StateFailed, Err: err}
			failed[name] = err
			l.log.Warnw("Plugin failed instantiation", "plugin", name, "error", err.Error())
			continue
		}
		l.instances[name] = inst
		ready = append(ready, inst)
	}
	l.mu.Unlock()

	l.initialize(ctx, ready, failed)
	return nil
}

// instantiateLocked builds the runtime and constructs the plugin.
func (l *Loader) instantiateLocked(m *Manifest) (*Instance, error) {
	factory, ok := l.opts.Factories.Get(m.Name)
	if !ok && m.EntryClass != "" {
		factory, ok = l.opts.Factories.Get(m.EntryClass)
	}
	if !ok {
		return nil, errors.Newf("no factory registered for plugin %q", m.Name)
	}

	workspace := filepath.Join(l.opts.DataDir, m.Name)
	rt := &Runtime{
		Manifest:  m,
		Workspace: workspace,
		Debug:     l.opts.Debug,
		API:       l.opts.API,
		Services:  l.opts.Services,
		events:    l.opts.Bus,
		schedule:  l.opts.Schedule,
		commands:  l.opts.Commands,
	}

	p := factory(rt)
	if p == nil {
		return nil, errors.Newf("factory for plugin %q returned nil", m.Name)
	}
	return &Instance{Manifest: m, State: StateInstantiated, plugin: p, runtime: rt}, nil
}

// initialize runs OnLoad hooks in dependency order, in parallel across
// independent subtrees. A plugin's OnLoad starts only after every
// declared dependency's OnLoad returned successfully. Plugins that
// already failed this round (resolution or instantiation) are seeded
// into the wait table so their dependents fail instead of proceeding.
func (l *Loader) initialize(ctx context.Context, ready []*Instance, failed map[string]error) {
	done := make(map[string]chan error, len(ready)+len(failed))
	for _, inst := range ready {
		done[inst.Manifest.Name] = make(chan error, 1)
	}
	for name, cause := range failed {
		ch := make(chan error, 1)
		ch <- cause
		done[name] = ch
	}

	var wg sync.WaitGroup
	for _, inst := range ready {
		wg.Add(1)
		go func(inst *Instance) {
			defer wg.Done()
			name := inst.Manifest.Name

			for dep := range inst.Manifest.Dependencies {
				ch, tracked := done[dep]
				if !tracked {
					continue // dependency loaded in an earlier LoadAll
				}
				if err := <-ch; err != nil {
					ch <- err // repost for other dependents
					l.fail(name, errors.Wrapf(err, "dependency %q failed to load", dep))
					done[name] <- errors.Newf("plugin %q not loaded", name)
					return
				}
				ch <- nil
			}

			err := l.runOnLoad(ctx, inst)
			done[name] <- err
			if err != nil {
				l.fail(name, err)
				return
			}
			l.setState(name, StateRunning)
			l.log.Infow("Plugin loaded",
				"plugin", name,
				"version", inst.Manifest.Version,
			)
		}(inst)
	}
	wg.Wait()
}

func (l *Loader) setState(name string, state State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if inst, ok := l.instances[name]; ok {
		inst.State = state
	}
}

func (l *Loader) fail(name string, cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if inst, ok := l.instances[name]; ok {
		inst.State = StateFailed
		inst.Err = cause
	}
	l.log.Warnw("Plugin failed to load", "plugin", name, "error", cause.Error())
}

// runOnLoad prepares the workspace and config, then invokes the hook
// with panic containment.
func (l *Loader) runOnLoad(ctx context.Context, inst *Instance) (err error) {
	if err := os.MkdirAll(inst.runtime.Workspace, 0o755); err != nil {
		return errors.Wrapf(err, "creating workspace for plugin %s", inst.Manifest.Name)
	}
	if err := inst.runtime.loadConfig(); err != nil {
		return err
	}
	l.setState(inst.Manifest.Name, StateInitialized)

	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf("plugin %s OnLoad panicked: %v", inst.Manifest.Name, rec)
		}
	}()
	return inst.plugin.OnLoad(ctx)
}

// Unload tears one plugin down: bus subscriptions, scheduled tasks and
// commands are swept, OnClose runs, config persists, and the instance
// is dropped.
func (l *Loader) Unload(ctx context.Context, name string) error {
	l.mu.Lock()
	inst, ok := l.instances[name]
	if !ok {
		l.mu.Unlock()
		return errors.Wrapf(errors.ErrNotFound, "plugin %q", name)
	}
	delete(l.instances, name)
	l.mu.Unlock()

	if inst.State != StateRunning {
		return nil
	}
	inst.State = StateClosing

	l.opts.Bus.UnsubscribeOwner(name)
	l.opts.Schedule.CancelOwner(name)
	l.opts.Commands.UnregisterOwner(name)

	var closeErr error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				closeErr = errors.Newf("plugin %s OnClose panicked: %v", name, rec)
			}
		}()
		closeErr = inst.plugin.OnClose(ctx)
	}()

	if err := inst.runtime.SaveConfig(); err != nil {
		l.log.Warnw("Persisting plugin config failed", "plugin", name, "error", err.Error())
	}

	inst.State = StateUnloaded
	l.log.Infow("Plugin unloaded", "plugin", name)
	return closeErr
}

// UnloadAll unloads every running plugin, dependents before their
// dependencies.
func (l *Loader) UnloadAll(ctx context.Context) {
	l.mu.Lock()
	manifests := make(map[string]*Manifest)
	for name, inst := range l.instances {
		if inst.State == StateRunning {
			manifests[name] = inst.Manifest
		}
	}
	l.mu.Unlock()

	resolution, err := resolve(manifests)
	if err != nil {
		// A cycle cannot happen for plugins that loaded; fall back to
		// arbitrary order.
		for name := range manifests {
			_ = l.Unload(ctx, name)
		}
		return
	}
	// Plugins whose dependency was already unloaded individually fall
	// out of the resolution order; they still must close. Their own
	// dependencies are gone, so they go first.
	failed := make([]string, 0, len(resolution.Failed))
	for name := range resolution.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		_ = l.Unload(ctx, name)
	}
	for i := len(resolution.Order) - 1; i >= 0; i-- {
		_ = l.Unload(ctx, resolution.Order[i])
	}
}

// Reload unloads then reloads a single plugin, preserving its persisted
// config across the cycle.
func (l *Loader) Reload(ctx context.Context, name string) error {
	if err := l.Unload(ctx, name); err != nil {
		l.log.Warnw("Unload during reload reported an error", "plugin", name, "error", err.Error())
	}

	dir := filepath.Join(l.opts.Dir, name)
	m, err := ReadManifest(dir)
	if err != nil {
		// The directory may be named differently from the plugin; fall
		// back to a full scan.
		manifests, derr := l.Discover()
		if derr != nil {
			return derr
		}
		var ok bool
		if m, ok = manifests[name]; !ok {
			return errors.Wrapf(errors.ErrNotFound, "plugin %q", name)
		}
	}

	l.mu.Lock()
	inst, ierr := l.instantiateLocked(m)
	if ierr != nil {
		l.instances[name] = &Instance{Manifest: m, State: StateFailed, Err: ierr}
		l.mu.Unlock()
		return ierr
	}
	l.instances[name] = inst
	l.mu.Unlock()

	l.initialize(ctx, []*Instance{inst}, nil)

	l.mu.Lock()
	defer l.mu.Unlock()
	if inst.State == StateFailed {
		return inst.Err
	}
	return nil
}

// Instances snapshots every tracked plugin sorted by name.
func (l *Loader) Instances() []*Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Instance, 0, len(l.instances))
	for _, inst := range l.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Manifest.Name < out[j].Manifest.Name
	})
	return out
}

// Get returns one instance by name.
func (l *Loader) Get(name string) (*Instance, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst, ok := l.instances[name]
	return inst, ok
}
