package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeExact(t *testing.T) {
	b := New()
	var hits int32
	id, err := b.Subscribe("nyabot.group_message_event", func(ctx context.Context, ev *Event) error {
		atomic.AddInt32(&hits, 1)
		return nil
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	b.Publish(context.Background(), &Event{Type: "nyabot.group_message_event"})
	b.Publish(context.Background(), &Event{Type: "nyabot.private_message_event"})
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSubscribeRegex(t *testing.T) {
	b := New()
	var hits int32
	_, err := b.Subscribe(`re:nyabot\..*_message_event`, func(ctx context.Context, ev *Event) error {
		atomic.AddInt32(&hits, 1)
		return nil
	})
	require.NoError(t, err)

	b.Publish(context.Background(), &Event{Type: "nyabot.group_message_event"})
	b.Publish(context.Background(), &Event{Type: "nyabot.private_message_event"})
	b.Publish(context.Background(), &Event{Type: "nyabot.notice_event"})
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestSubscribeBadRegex(t *testing.T) {
	b := New()
	_, err := b.Subscribe("re:[unclosed", func(ctx context.Context, ev *Event) error { return nil })
	assert.Error(t, err)
}

func TestUnsubscribeTwiceIsNoop(t *testing.T) {
	b := New()
	id, err := b.Subscribe("t", func(ctx context.Context, ev *Event) error { return nil })
	require.NoError(t, err)

	assert.True(t, b.Unsubscribe(id))
	assert.False(t, b.Unsubscribe(id))
}

func TestUnsubscribedHandlerNeverInvoked(t *testing.T) {
	b := New()
	var hits int32
	id, _ := b.Subscribe("t", func(ctx context.Context, ev *Event) error {
		atomic.AddInt32(&hits, 1)
		return nil
	})
	b.Publish(context.Background(), &Event{Type: "t"})
	b.Unsubscribe(id)
	b.Publish(context.Background(), &Event{Type: "t"})
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPriorityOrdering(t *testing.T) {
	b := New()
	noop := func(ctx context.Context, ev *Event) error { return nil }

	_, err := b.Subscribe("t", noop, WithPriority(1), WithOwner("low"))
	require.NoError(t, err)
	_, err = b.Subscribe("t", noop, WithPriority(10), WithOwner("high"))
	require.NoError(t, err)
	_, err = b.Subscribe("t", noop, WithPriority(10), WithOwner("high-later"))
	require.NoError(t, err)

	subs := b.matching("t")
	require.Len(t, subs, 3)
	assert.Equal(t, "high", subs[0].owner, "higher priority schedules first")
	assert.Equal(t, "high-later", subs[1].owner, "registration order breaks ties")
	assert.Equal(t, "low", subs[2].owner)
}

func TestPublishAwaitsAllHandlers(t *testing.T) {
	b := New()
	var done int32
	for i := 0; i < 5; i++ {
		_, err := b.Subscribe("t", func(ctx context.Context, ev *Event) error {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&done, 1)
			return nil
		})
		require.NoError(t, err)
	}
	b.Publish(context.Background(), &Event{Type: "t"})
	assert.Equal(t, int32(5), atomic.LoadInt32(&done), "await-all returns only after all handlers complete")
}

func TestPublishAsyncReturnsImmediately(t *testing.T) {
	b := New()
	release := make(chan struct{})
	finished := make(chan struct{})
	_, err := b.Subscribe("t", func(ctx context.Context, ev *Event) error {
		<-release
		close(finished)
		return nil
	})
	require.NoError(t, err)

	start := time.Now()
	b.PublishAsync(context.Background(), &Event{Type: "t"})
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestHandlerTimeoutDoesNotBlockPeers(t *testing.T) {
	b := New()
	var fastRan int32
	_, err := b.Subscribe("t", func(ctx context.Context, ev *Event) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}, WithTimeout(20*time.Millisecond), WithPriority(10))
	require.NoError(t, err)
	_, err = b.Subscribe("t", func(ctx context.Context, ev *Event) error {
		atomic.AddInt32(&fastRan, 1)
		return nil
	})
	require.NoError(t, err)

	start := time.Now()
	b.Publish(context.Background(), &Event{Type: "t"})
	assert.Less(t, time.Since(start), time.Second, "timed-out handler is abandoned, not awaited")
	assert.Equal(t, int32(1), atomic.LoadInt32(&fastRan))
}

func TestHandlerPanicIsContained(t *testing.T) {
	b := New()
	var peerRan int32
	_, _ = b.Subscribe("t", func(ctx context.Context, ev *Event) error {
		panic("boom")
	}, WithPriority(10))
	_, _ = b.Subscribe("t", func(ctx context.Context, ev *Event) error {
		atomic.AddInt32(&peerRan, 1)
		return nil
	})

	require.NotPanics(t, func() {
		b.Publish(context.Background(), &Event{Type: "t"})
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&peerRan))
}

func TestUnsubscribeOwner(t *testing.T) {
	b := New()
	noop := func(ctx context.Context, ev *Event) error { return nil }
	_, _ = b.Subscribe("a", noop, WithOwner("pluginA"))
	_, _ = b.Subscribe("b", noop, WithOwner("pluginA"))
	_, _ = b.Subscribe(`re:c\..*`, noop, WithOwner("pluginA"))
	_, _ = b.Subscribe("a", noop, WithOwner("pluginB"))

	assert.Equal(t, 3, b.OwnerSubscriptions("pluginA"))
	assert.Equal(t, 3, b.UnsubscribeOwner("pluginA"))
	assert.Equal(t, 0, b.OwnerSubscriptions("pluginA"))
	assert.Equal(t, 1, b.OwnerSubscriptions("pluginB"))
}

func TestMidPublishUnsubscribe(t *testing.T) {
	b := New()
	var id uuid.UUID
	var mu sync.Mutex
	ran := 0

	id, _ = b.Subscribe("t", func(ctx context.Context, ev *Event) error {
		mu.Lock()
		ran++
		mu.Unlock()
		b.Unsubscribe(id) // snapshot iteration tolerates this
		return nil
	})

	require.NotPanics(t, func() {
		b.Publish(context.Background(), &Event{Type: "t"})
	})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, ran)
}

func TestPublishSync(t *testing.T) {
	b := New()
	var hits int32
	_, _ = b.Subscribe("t", func(ctx context.Context, ev *Event) error {
		atomic.AddInt32(&hits, 1)
		return nil
	})
	require.NoError(t, b.PublishSync(&Event{Type: "t"}, time.Second))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPublishSyncTimeout(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("t", func(ctx context.Context, ev *Event) error {
		time.Sleep(5 * time.Second)
		return nil
	})
	err := b.PublishSync(&Event{Type: "t"}, 20*time.Millisecond)
	assert.Error(t, err)
}
