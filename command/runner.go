package command

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nyabot/nyabot/bus"
	"github.com/nyabot/nyabot/event"
	"github.com/nyabot/nyabot/logger"
)

// Runner drives the full command pipeline: precheck, resolve, filter,
// bind, invoke. It is registered as a bus handler for message events.
type Runner struct {
	registry *Registry
	resolver *Resolver
	events   *bus.EventBus
	log      *zap.SugaredLogger
}

// NewRunner builds a runner over the registry, publishing binding
// failures onto b.
func NewRunner(registry *Registry, b *bus.EventBus) *Runner {
	return &Runner{
		registry: registry,
		resolver: NewResolver(registry),
		events:   b,
		log:      logger.Named("command"),
	}
}

// Registry exposes the underlying registry for registration calls.
func (r *Runner) Registry() *Registry { return r.registry }

// Run processes one message event. It reports whether a command was
// dispatched; non-command messages return false quietly.
func (r *Runner) Run(ctx context.Context, ev event.MessageEvent) bool {
	text := ev.GetMessage().FirstText()
	if strings.TrimSpace(text) == "" {
		return false
	}

	tokens, err := Tokenize(text)
	if err != nil {
		r.log.Debugw("Dropping unlexable command text", "error", err.Error())
		return false
	}
	parsed := Parse(tokens)

	match, err := r.resolver.Resolve(parsed.Elems)
	if err != nil {
		r.log.Errorw("Command index rebuild failed", "error", err.Error())
		return false
	}
	if match == nil {
		return false
	}

	for _, f := range match.Spec.Filters {
		if !f(ev) {
			r.log.Debugw("Command denied by filter",
				"command", match.Spec.pathKey(),
				"sender", string(ev.SenderID()),
			)
			return false
		}
	}

	args, err := bind(match.Spec, parsed, match.PathWords, r.registry.strict())
	if err != nil {
		r.publishBindFailure(ctx, ev, err)
		return false
	}

	if err := r.invoke(ctx, match.Spec, ev, args); err != nil {
		r.log.Errorw("Command handler failed",
			"command", match.Spec.pathKey(),
			"error", err.Error(),
		)
	}
	return true
}

// invoke runs the handler with panic containment.
func (r *Runner) invoke(ctx context.Context, spec *Spec, ev event.MessageEvent, args *Bound) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorw("Command handler panicked",
				"command", spec.pathKey(),
				"panic", rec,
			)
		}
	}()
	return spec.Handler(ctx, ev, args)
}

// publishBindFailure turns a BindingError into a bus event so plugins
// can render usage help. Non-binding errors are just logged.
func (r *Runner) publishBindFailure(ctx context.Context, ev event.MessageEvent, err error) {
	bindErr, ok := err.(*BindingError)
	if !ok {
		r.log.Warnw("Command binding failed", "error", err.Error())
		return
	}
	r.log.Debugw("Command binding failed",
		"command", bindErr.Command,
		"param", bindErr.Param,
		"reason", bindErr.Reason,
	)
	if r.events != nil {
		r.events.PublishAsync(ctx, &bus.Event{
			Type: event.TypeBindFailed,
			Data: &BindFailure{Event: ev, Err: bindErr},
			Time: time.Now(),
		})
	}
}

// BindFailure is the payload of a bind-failed event.
type BindFailure struct {
	Event event.MessageEvent
	Err   *BindingError
}
