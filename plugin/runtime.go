package plugin

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nyabot/nyabot/api"
	"github.com/nyabot/nyabot/bus"
	"github.com/nyabot/nyabot/command"
	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/schedule"
	"github.com/nyabot/nyabot/service"
)

// Runtime is what the loader injects into every plugin: framework
// handles plus the plugin's own manifest, workspace and config. All
// registrations made through it are owner-tagged with the plugin name
// so unload can sweep them.
type Runtime struct {
	Manifest  *Manifest
	Workspace string
	Debug     bool

	API      *api.Caller
	Services *service.Manager

	events   *bus.EventBus
	schedule *schedule.Service
	commands *command.Registry

	config map[string]interface{}
}

// Subscribe registers a bus handler owned by this plugin.
func (rt *Runtime) Subscribe(pattern string, h bus.Handler, opts ...bus.SubscribeOption) (uuid.UUID, error) {
	opts = append(opts, bus.WithOwner(rt.Manifest.Name))
	return rt.events.Subscribe(pattern, h, opts...)
}

// Unsubscribe removes one of this plugin's subscriptions.
func (rt *Runtime) Unsubscribe(id uuid.UUID) bool {
	return rt.events.Unsubscribe(id)
}

// RegisterCommand adds a command owned by this plugin.
func (rt *Runtime) RegisterCommand(spec *command.Spec) error {
	spec.Owner = rt.Manifest.Name
	return rt.commands.Register(spec)
}

// AddCron schedules a task owned by this plugin. The name is scoped by
// the plugin name to avoid collisions.
func (rt *Runtime) AddCron(name, spec string, fn func()) error {
	return rt.schedule.AddCron(rt.taskName(name), rt.Manifest.Name, spec, fn)
}

// AddInterval schedules a repeating task owned by this plugin.
func (rt *Runtime) AddInterval(name string, every time.Duration, fn func()) error {
	return rt.schedule.AddInterval(rt.taskName(name), rt.Manifest.Name, every, fn)
}

// CancelTask removes one of this plugin's scheduled tasks.
func (rt *Runtime) CancelTask(name string) bool {
	return rt.schedule.Cancel(rt.taskName(name))
}

func (rt *Runtime) taskName(name string) string {
	return rt.Manifest.Name + "." + name
}

// Config returns the plugin's mutable config document. Changes persist
// on unload (or an explicit SaveConfig).
func (rt *Runtime) Config() map[string]interface{} {
	if rt.config == nil {
		rt.config = map[string]interface{}{}
	}
	return rt.config
}

// configPath is <workspace>/<name>.yaml.
func (rt *Runtime) configPath() string {
	return filepath.Join(rt.Workspace, rt.Manifest.Name+".yaml")
}

// loadConfig reads the persisted config document. Missing files leave
// the config empty.
func (rt *Runtime) loadConfig() error {
	data, err := os.ReadFile(rt.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading config for plugin %s", rt.Manifest.Name)
	}
	cfg := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return errors.Wrapf(err, "parsing config for plugin %s", rt.Manifest.Name)
	}
	rt.config = cfg
	return nil
}

// SaveConfig persists the config document to the workspace.
func (rt *Runtime) SaveConfig() error {
	data, err := yaml.Marshal(rt.Config())
	if err != nil {
		return errors.Wrapf(err, "encoding config for plugin %s", rt.Manifest.Name)
	}
	if err := os.WriteFile(rt.configPath(), data, 0o644); err != nil {
		return errors.Wrapf(err, "writing config for plugin %s", rt.Manifest.Name)
	}
	return nil
}
