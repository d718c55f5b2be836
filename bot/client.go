// Package bot assembles the framework: gateway, bus, dispatcher,
// services and plugins, with front and back run modes.
package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nyabot/nyabot/api"
	"github.com/nyabot/nyabot/bus"
	"github.com/nyabot/nyabot/command"
	"github.com/nyabot/nyabot/config"
	"github.com/nyabot/nyabot/dispatch"
	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/event"
	"github.com/nyabot/nyabot/filter"
	"github.com/nyabot/nyabot/gateway"
	"github.com/nyabot/nyabot/logger"
	"github.com/nyabot/nyabot/plugin"
	"github.com/nyabot/nyabot/rbac"
	"github.com/nyabot/nyabot/schedule"
	"github.com/nyabot/nyabot/service"
)

// startupTimeout is how long RunBackend waits for the gateway's
// lifecycle event before giving up.
const startupTimeout = 90 * time.Second

// Client is the assembled bot.
type Client struct {
	cfg *config.Config
	log *zap.SugaredLogger

	Bus      *bus.EventBus
	RBAC     *rbac.Service
	Schedule *schedule.Service
	Services *service.Manager
	Commands *command.Registry
	Plugins  *plugin.Loader

	runner     *command.Runner
	router     *gateway.Router
	caller     *api.Caller
	dispatcher *dispatch.Dispatcher

	startupOnce sync.Once
	startup     chan struct{}

	watcher *config.Watcher
	cancel  context.CancelFunc
}

// New wires the in-process pieces. Nothing connects until Start.
func New(cfg *config.Config) *Client {
	c := &Client{
		cfg:      cfg,
		log:      logger.Named("bot"),
		Bus:      bus.New(),
		Schedule: schedule.NewService(),
		Services: service.NewManager(),
		startup:  make(chan struct{}),
	}

	c.RBAC = rbac.NewService(rbac.Options{
		StoragePath:   cfg.RBAC.Path,
		DefaultRole:   cfg.RBAC.DefaultRole,
		CaseSensitive: cfg.RBAC.CaseSensitive,
	})
	c.Commands = command.NewRegistry(cfg.Command.Prefixes, cfg.Command.CaseSensitive)
	c.Commands.SetStrictPositional(cfg.Command.StrictPositional)
	c.runner = command.NewRunner(c.Commands, c.Bus)
	return c
}

// API returns the outbound API handle; nil before Start.
func (c *Client) API() *api.Caller { return c.caller }

// Start connects to the gateway and brings every subsystem up. It
// returns once the bot is live; the read loop runs in the background.
func (c *Client) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return errors.Wrap(err, "validating config")
	}

	if c.cfg.RBAC.Path != "" {
		if err := c.RBAC.Load(); err != nil {
			return errors.Wrap(err, "loading rbac state")
		}
	}
	c.seedRootUser()

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	router, err := gateway.Dial(ctx, gateway.Options{
		URI:      c.cfg.Napcat.WSURI,
		Token:    c.cfg.Napcat.WSToken,
		SendRate: c.cfg.Napcat.SendRatePerSecond,
	})
	if err != nil {
		cancel()
		return err
	}
	c.router = router
	c.caller = api.New(router.Send, time.Duration(c.cfg.Napcat.SendTimeoutSeconds)*time.Second)

	c.dispatcher = dispatch.New(c.Bus, c.caller)
	c.subscribeBuiltins()

	c.Schedule.Start()
	if err := c.Services.LoadAll(runCtx); err != nil {
		c.log.Errorw("Service startup failed", "error", err.Error())
		c.shutdownLocked(runCtx)
		return err
	}

	c.Plugins = plugin.NewLoader(plugin.LoaderOptions{
		Dir:       c.cfg.Plugin.Dir,
		DataDir:   c.cfg.DataDir,
		Whitelist: c.cfg.Plugin.Whitelist,
		Blacklist: c.cfg.Plugin.Blacklist,
		Debug:     c.cfg.Debug,
		Bus:       c.Bus,
		API:       c.caller,
		Services:  c.Services,
		Schedule:  c.Schedule,
		Commands:  c.Commands,
	})
	if !c.cfg.Plugin.SkipLoad {
		if err := c.Plugins.LoadAll(runCtx); err != nil {
			c.log.Errorw("Plugin load failed", "error", err.Error())
			c.shutdownLocked(runCtx)
			return err
		}
	}

	go c.dispatcher.Run(runCtx, router.Events())

	c.log.Infow("Bot started", "uin", c.cfg.BtUIN, "gateway", c.cfg.Napcat.WSURI)
	return nil
}

// seedRootUser makes sure the configured root account holds the root
// role with full permissions.
func (c *Client) seedRootUser() {
	if c.cfg.Root == "" {
		return
	}
	base := c.cfg.RBAC.DefaultRole
	if base == "" {
		base = config.RoleUser
	}
	_ = c.RBAC.AddRole(base, true)
	_ = c.RBAC.AddRole(config.RoleAdmin, true)
	_ = c.RBAC.AddRole(config.RoleRoot, true)
	_ = c.RBAC.SetRoleInheritance(config.RoleAdmin, base)
	_ = c.RBAC.SetRoleInheritance(config.RoleRoot, config.RoleAdmin)
	_ = c.RBAC.Grant(rbac.TargetRole, config.RoleRoot, "**", rbac.ModeWhite)
	_ = c.RBAC.AssignRole(c.cfg.Root, config.RoleRoot)
}

// subscribeBuiltins bridges official events into the command runner and
// the startup latch.
func (c *Client) subscribeBuiltins() {
	_, _ = c.Bus.Subscribe(event.TypeStartup, func(context.Context, *bus.Event) error {
		c.startupOnce.Do(func() { close(c.startup) })
		return nil
	}, bus.WithOwner("bot"), bus.WithPriority(100))

	handler := func(ctx context.Context, ev *bus.Event) error {
		msg, ok := ev.Data.(event.MessageEvent)
		if !ok {
			return nil
		}
		c.runner.Run(ctx, msg)
		return nil
	}
	_, _ = c.Bus.Subscribe(event.TypeGroupMessage, handler, bus.WithOwner("bot"))
	_, _ = c.Bus.Subscribe(event.TypePrivateMessage, handler, bus.WithOwner("bot"))
}

// WatchConfig hot-reloads safe fields whenever the config file on disk
// changes. Gateway, plugin and RBAC settings need a restart and are not
// touched.
func (c *Client) WatchConfig(path string) error {
	w, err := config.NewWatcher(path)
	if err != nil {
		return err
	}
	w.OnReload(func(cfg *config.Config) error {
		c.applySafeFields(cfg)
		return nil
	})
	w.Start()
	c.watcher = w
	return nil
}

func (c *Client) applySafeFields(cfg *config.Config) {
	c.Commands.SetStrictPositional(cfg.Command.StrictPositional)

	if cfg.Debug != c.cfg.Debug {
		level := zapcore.InfoLevel
		if cfg.Debug {
			level = zapcore.DebugLevel
		}
		if err := logger.InitializeWithLevel(cfg.Log.JSON, level); err != nil {
			c.log.Warnw("Applying reloaded log level failed", "error", err.Error())
		}
	}

	c.cfg.Debug = cfg.Debug
	c.cfg.Command.StrictPositional = cfg.Command.StrictPositional
	c.log.Infow("Configuration reloaded",
		"debug", cfg.Debug,
		"strict_positional", cfg.Command.StrictPositional,
	)
}

// AdminFilter is a convenience for plugins gating commands on the admin
// role.
func (c *Client) AdminFilter() filter.Filter { return filter.Admin(c.RBAC) }

// RootFilter gates on the root role.
func (c *Client) RootFilter() filter.Filter { return filter.Root(c.RBAC) }

// Shutdown tears everything down in reverse order of startup.
func (c *Client) Shutdown(ctx context.Context) {
	c.log.Infow("Shutting down")
	c.shutdownLocked(ctx)
}

func (c *Client) shutdownLocked(ctx context.Context) {
	if c.watcher != nil {
		_ = c.watcher.Close()
		c.watcher = nil
	}
	if c.Plugins != nil {
		c.Plugins.UnloadAll(ctx)
	}
	if c.dispatcher != nil {
		c.dispatcher.Shutdown(10 * time.Second)
	}
	c.Services.CloseAll(ctx)
	c.Schedule.Stop()
	if c.cfg.RBAC.Path != "" {
		if err := c.RBAC.Save(); err != nil {
			c.log.Warnw("Saving rbac state failed", "error", err.Error())
		}
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.router != nil {
		_ = c.router.Close()
	}
}
