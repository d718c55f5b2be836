// Package status is a built-in plugin reporting bot health: uptime,
// messages seen since start and the last gateway heartbeat.
package status

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nyabot/nyabot/bus"
	"github.com/nyabot/nyabot/command"
	"github.com/nyabot/nyabot/event"
	"github.com/nyabot/nyabot/onebot"
	"github.com/nyabot/nyabot/plugin"
)

func init() {
	plugin.Register("status", New)
}

// Status tracks message volume and heartbeat freshness.
type Status struct {
	rt *plugin.Runtime

	started  time.Time
	messages atomic.Int64
	// lastBeat is a unix timestamp; zero until the first heartbeat.
	lastBeat atomic.Int64
}

// New is the factory the loader binds to the status manifest.
func New(rt *plugin.Runtime) plugin.Plugin {
	return &Status{rt: rt}
}

func (p *Status) OnLoad(ctx context.Context) error {
	p.started = time.Now()

	count := func(context.Context, *bus.Event) error {
		p.messages.Add(1)
		return nil
	}
	if _, err := p.rt.Subscribe(event.TypeGroupMessage, count); err != nil {
		return err
	}
	if _, err := p.rt.Subscribe(event.TypePrivateMessage, count); err != nil {
		return err
	}
	if _, err := p.rt.Subscribe(event.TypeHeartbeat, func(context.Context, *bus.Event) error {
		p.lastBeat.Store(time.Now().Unix())
		return nil
	}); err != nil {
		return err
	}

	// Persist the running totals periodically so a crash loses at most
	// a minute of counting.
	if err := p.rt.AddInterval("checkpoint", time.Minute, p.checkpoint); err != nil {
		return err
	}

	return p.rt.RegisterCommand(&command.Spec{
		Path:    []string{"status"},
		Aliases: [][]string{{"st"}},
		Handler: p.report,
	})
}

func (p *Status) report(ctx context.Context, ev event.MessageEvent, b *command.Bound) error {
	uptime := time.Since(p.started).Round(time.Second)
	beat := "never"
	if ts := p.lastBeat.Load(); ts > 0 {
		beat = time.Since(time.Unix(ts, 0)).Round(time.Second).String() + " ago"
	}
	text := fmt.Sprintf("up %s, %d messages, last heartbeat %s",
		uptime, p.messages.Load(), beat)
	_, err := ev.Reply(ctx, onebot.NewText(text))
	return err
}

func (p *Status) checkpoint() {
	p.rt.Config()["messages"] = p.messages.Load()
	_ = p.rt.SaveConfig()
}

func (p *Status) OnClose(ctx context.Context) error {
	p.checkpoint()
	return nil
}
