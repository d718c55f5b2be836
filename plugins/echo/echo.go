// Package echo is a minimal built-in plugin: it registers one command
// and keeps a use counter in its persisted config. It doubles as a
// reference for plugin authors.
package echo

import (
	"context"
	"strings"

	"github.com/nyabot/nyabot/command"
	"github.com/nyabot/nyabot/event"
	"github.com/nyabot/nyabot/onebot"
	"github.com/nyabot/nyabot/plugin"
)

func init() {
	plugin.Register("echo", New)
}

// Echo repeats whatever follows the command word.
type Echo struct {
	rt *plugin.Runtime
}

// New is the factory the loader binds to the echo manifest.
func New(rt *plugin.Runtime) plugin.Plugin {
	return &Echo{rt: rt}
}

func (p *Echo) OnLoad(ctx context.Context) error {
	return p.rt.RegisterCommand(&command.Spec{
		Path:     []string{"echo"},
		Variadic: true,
		Handler:  p.run,
	})
}

func (p *Echo) run(ctx context.Context, ev event.MessageEvent, b *command.Bound) error {
	text := strings.Join(b.Tail, " ")
	if text == "" {
		text = "echo what?"
	}

	cfg := p.rt.Config()
	count, _ := cfg["count"].(int)
	cfg["count"] = count + 1

	_, err := ev.Reply(ctx, onebot.NewText(text))
	return err
}

func (p *Echo) OnClose(ctx context.Context) error {
	return nil
}
