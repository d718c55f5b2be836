// Package dispatch turns inbound gateway frames into typed bus events.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nyabot/nyabot/api"
	"github.com/nyabot/nyabot/bus"
	"github.com/nyabot/nyabot/event"
	"github.com/nyabot/nyabot/logger"
	"github.com/nyabot/nyabot/onebot"
)

// apiBinder is satisfied by events that take a borrowed API handle.
type apiBinder interface {
	BindAPI(caller *api.Caller)
}

// Dispatcher consumes the gateway's event stream, parses each frame into
// its typed event, and publishes it fire-and-forget onto the bus.
// Malformed frames are logged and dropped, never fatal.
type Dispatcher struct {
	bus    *bus.EventBus
	caller *api.Caller
	log    *zap.SugaredLogger
}

// New builds a dispatcher publishing onto b with caller bound to every
// event that can carry one.
func New(b *bus.EventBus, caller *api.Caller) *Dispatcher {
	return &Dispatcher{bus: b, caller: caller, log: logger.Named("dispatch")}
}

// Run drains frames until the channel closes or ctx is cancelled. It is
// the owner goroutine's loop; callers usually run it with go.
func (d *Dispatcher) Run(ctx context.Context, frames <-chan *onebot.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			d.Dispatch(ctx, frame)
		}
	}
}

// Dispatch handles one frame.
func (d *Dispatcher) Dispatch(ctx context.Context, frame *onebot.Frame) {
	ev, err := event.Parse(frame.PostType, frame.Raw)
	if err != nil {
		d.log.Warnw("Dropping undecodable frame",
			"post_type", frame.PostType,
			"error", err.Error(),
		)
		return
	}

	if binder, ok := ev.(apiBinder); ok {
		binder.BindAPI(d.caller)
	}

	d.bus.PublishAsync(ctx, &bus.Event{
		Type: ev.EventType(),
		Data: ev,
		Time: time.Now(),
	})
}

// Shutdown publishes the shutdown event and waits for handlers up to
// timeout.
func (d *Dispatcher) Shutdown(timeout time.Duration) {
	err := d.bus.PublishSync(&bus.Event{
		Type: event.TypeShutdown,
		Data: &event.Meta{MetaEventType: "lifecycle", SubType: "disconnect"},
		Time: time.Now(),
	}, timeout)
	if err != nil {
		d.log.Warnw("Shutdown handlers did not finish", "error", err.Error())
	}
}
