// Package bus implements the framework event bus: a priority-ordered,
// pattern-subscribable publish/subscribe system bridging gateway frames to
// plugin handlers.
package bus

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/logger"
)

// RegexPrefix marks a subscription pattern as a regular expression over
// event-type strings; anything else is an exact match.
const RegexPrefix = "re:"

// Event is what flows through the bus.
type Event struct {
	// Type is the event-type string, e.g. "nyabot.group_message_event".
	Type string
	// Data is the typed payload; handlers assert the concrete type.
	Data interface{}
	// Time is when the event was published.
	Time time.Time
}

// Handler processes one event. The context is cancelled when the handler's
// subscription timeout elapses; handlers doing IO should honor it.
type Handler func(ctx context.Context, ev *Event) error

type subscription struct {
	id       uuid.UUID
	pattern  string
	re       *regexp.Regexp // nil for exact subscriptions
	handler  Handler
	priority int
	timeout  time.Duration
	owner    string
	seq      uint64 // registration order, tiebreak within equal priority
}

// EventBus routes published events to matching subscriptions.
type EventBus struct {
	mu      sync.RWMutex
	exact   map[string][]*subscription
	regex   []*subscription
	byID    map[uuid.UUID]*subscription
	nextSeq uint64

	log *zap.SugaredLogger
}

// New creates an empty bus.
func New() *EventBus {
	return &EventBus{
		exact: make(map[string][]*subscription),
		byID:  make(map[uuid.UUID]*subscription),
		log:   logger.Named("bus"),
	}
}

// SubscribeOption customizes a subscription.
type SubscribeOption func(*subscription)

// WithPriority orders handler start: higher runs first. Default 0.
func WithPriority(p int) SubscribeOption {
	return func(s *subscription) { s.priority = p }
}

// WithTimeout bounds a single handler execution. Zero means unbounded.
func WithTimeout(d time.Duration) SubscribeOption {
	return func(s *subscription) { s.timeout = d }
}

// WithOwner tags the subscription with its owning plugin so unload can
// sweep it.
func WithOwner(owner string) SubscribeOption {
	return func(s *subscription) { s.owner = owner }
}

// Subscribe registers a handler for an event-type pattern. A pattern
// beginning with "re:" is compiled as a regex; otherwise it matches exactly.
// The returned id is unique process-wide.
func (b *EventBus) Subscribe(pattern string, h Handler, opts ...SubscribeOption) (uuid.UUID, error) {
	if h == nil {
		return uuid.Nil, errors.New("nil handler")
	}
	sub := &subscription{
		id:      uuid.New(),
		pattern: pattern,
		handler: h,
	}
	for _, opt := range opts {
		opt(sub)
	}

	if rest, ok := strings.CutPrefix(pattern, RegexPrefix); ok {
		re, err := regexp.Compile(rest)
		if err != nil {
			return uuid.Nil, errors.Wrapf(err, "invalid subscription pattern %q", pattern)
		}
		sub.re = re
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	sub.seq = b.nextSeq
	b.nextSeq++
	if sub.re != nil {
		b.regex = append(b.regex, sub)
	} else {
		b.exact[pattern] = append(b.exact[pattern], sub)
	}
	b.byID[sub.id] = sub
	return sub.id, nil
}

// Unsubscribe removes a subscription. Removing twice is a no-op.
func (b *EventBus) Unsubscribe(id uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.byID[id]
	if !ok {
		return false
	}
	delete(b.byID, id)
	if sub.re != nil {
		b.regex = removeSub(b.regex, id)
	} else {
		b.exact[sub.pattern] = removeSub(b.exact[sub.pattern], id)
		if len(b.exact[sub.pattern]) == 0 {
			delete(b.exact, sub.pattern)
		}
	}
	return true
}

// UnsubscribeOwner removes every subscription registered with the owner tag
// and returns how many were removed.
func (b *EventBus) UnsubscribeOwner(owner string) int {
	if owner == "" {
		return 0
	}
	b.mu.Lock()
	var ids []uuid.UUID
	for id, sub := range b.byID {
		if sub.owner == owner {
			ids = append(ids, id)
		}
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.Unsubscribe(id)
	}
	return len(ids)
}

// OwnerSubscriptions returns the live subscription count for an owner.
func (b *EventBus) OwnerSubscriptions(owner string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, sub := range b.byID {
		if sub.owner == owner {
			n++
		}
	}
	return n
}

func removeSub(subs []*subscription, id uuid.UUID) []*subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// matching snapshots the handler list for an event type, ordered by
// descending priority with registration order breaking ties. Publish
// iterates the snapshot, so mid-publish unsubscription is tolerated.
func (b *EventBus) matching(eventType string) []*subscription {
	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.exact[eventType])+len(b.regex))
	matched = append(matched, b.exact[eventType]...)
	for _, sub := range b.regex {
		if sub.re.MatchString(eventType) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].priority != matched[j].priority {
			return matched[i].priority > matched[j].priority
		}
		return matched[i].seq < matched[j].seq
	})
	return matched
}

// Publish delivers the event to all matching handlers and returns when every
// handler has completed or timed out (await-all mode). Handler start order
// follows priority; completion order is not guaranteed.
func (b *EventBus) Publish(ctx context.Context, ev *Event) {
	b.publish(ctx, ev, true)
}

// PublishAsync schedules all matching handlers and returns immediately
// (fire-and-forget mode). Used for raw upstream events so slow handlers
// never backpressure the gateway read loop.
func (b *EventBus) PublishAsync(ctx context.Context, ev *Event) {
	b.publish(ctx, ev, false)
}

// PublishSync is the cross-goroutine helper for non-async callers: it blocks
// up to timeout for all handlers to finish.
func (b *EventBus) PublishSync(ev *Event, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		b.Publish(ctx, ev)
		close(done)
	}()
	select {
	case <-done:
		if ctx.Err() != nil {
			return errors.Wrapf(errors.ErrTimeout, "publish %s", ev.Type)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrapf(errors.ErrTimeout, "publish %s", ev.Type)
	}
}

func (b *EventBus) publish(ctx context.Context, ev *Event, await bool) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	subs := b.matching(ev.Type)
	if len(subs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		// invoke returns immediately after scheduling; calling it
		// synchronously in priority order establishes handler start order.
		b.invoke(ctx, sub, ev, &wg)
	}
	if await {
		wg.Wait()
	}
}

// invoke runs one handler with its timeout, recovering panics so a broken
// handler never takes down its peers or the caller.
func (b *EventBus) invoke(ctx context.Context, sub *subscription, ev *Event, wg *sync.WaitGroup) {
	handlerCtx := ctx
	var cancel context.CancelFunc
	if sub.timeout > 0 {
		handlerCtx, cancel = context.WithTimeout(ctx, sub.timeout)
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Newf("handler panic: %v", r)
			}
		}()
		done <- sub.handler(handlerCtx, ev)
	}()

	go func() {
		defer wg.Done()
		if cancel != nil {
			defer cancel()
		}
		select {
		case err := <-done:
			if err != nil {
				b.log.Errorw("handler failed",
					"event", ev.Type,
					"pattern", sub.pattern,
					"owner", sub.owner,
					"error", err,
				)
			}
		case <-handlerCtx.Done():
			b.log.Warnw("handler timed out",
				"event", ev.Type,
				"pattern", sub.pattern,
				"owner", sub.owner,
				"timeout", sub.timeout,
			)
		}
	}()
}
