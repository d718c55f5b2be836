package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyabot/nyabot/api"
	"github.com/nyabot/nyabot/bus"
	"github.com/nyabot/nyabot/event"
	"github.com/nyabot/nyabot/onebot"
)

func noopSend(_ context.Context, _ string, _ interface{}, _ time.Duration) (*onebot.Response, error) {
	return &onebot.Response{Status: "ok"}, nil
}

func collectOne(t *testing.T, b *bus.EventBus, eventType string) <-chan *bus.Event {
	t.Helper()
	got := make(chan *bus.Event, 1)
	_, err := b.Subscribe(eventType, func(_ context.Context, ev *bus.Event) error {
		got <- ev
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestDispatchPublishesTypedEvent(t *testing.T) {
	b := bus.New()
	d := New(b, api.New(noopSend, time.Second))
	got := collectOne(t, b, event.TypeGroupMessage)

	raw := json.RawMessage(`{
		"post_type": "message",
		"message_type": "group",
		"group_id": 777,
		"user_id": 42,
		"message_id": 1,
		"message": [{"type":"text","data":{"text":"hi"}}],
		"sender": {"user_id": 42, "nickname": "neko"}
	}`)
	d.Dispatch(context.Background(), &onebot.Frame{PostType: "message", Raw: raw})

	select {
	case ev := <-got:
		gm, ok := ev.Data.(*event.GroupMessage)
		require.True(t, ok)
		assert.Equal(t, onebot.ID("777"), gm.Group())
		assert.NotNil(t, gm.API(), "dispatcher must bind the API handle")
	case <-time.After(time.Second):
		t.Fatal("event never published")
	}
}

func TestDispatchDropsMalformedFrame(t *testing.T) {
	b := bus.New()
	d := New(b, api.New(noopSend, time.Second))

	var mu sync.Mutex
	published := 0
	_, err := b.Subscribe(bus.RegexPrefix+"nyabot\\..*", func(_ context.Context, _ *bus.Event) error {
		mu.Lock()
		published++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	d.Dispatch(context.Background(), &onebot.Frame{PostType: "dance", Raw: json.RawMessage(`{}`)})
	d.Dispatch(context.Background(), &onebot.Frame{PostType: "message", Raw: json.RawMessage(`{"message_type":"group","message":"not-a-list`)})

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, published)
}

func TestDispatchMetaSplit(t *testing.T) {
	b := bus.New()
	d := New(b, api.New(noopSend, time.Second))
	startup := collectOne(t, b, event.TypeStartup)
	heartbeat := collectOne(t, b, event.TypeHeartbeat)

	d.Dispatch(context.Background(), &onebot.Frame{PostType: "meta_event", Raw: json.RawMessage(`{
		"post_type": "meta_event", "meta_event_type": "lifecycle", "sub_type": "connect"
	}`)})
	d.Dispatch(context.Background(), &onebot.Frame{PostType: "meta_event", Raw: json.RawMessage(`{
		"post_type": "meta_event", "meta_event_type": "heartbeat", "interval": 15000
	}`)})

	for name, ch := range map[string]<-chan *bus.Event{"startup": startup, "heartbeat": heartbeat} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("%s event never published", name)
		}
	}
}

func TestShutdownAwaitsHandlers(t *testing.T) {
	b := bus.New()
	d := New(b, api.New(noopSend, time.Second))

	done := false
	_, err := b.Subscribe(event.TypeShutdown, func(_ context.Context, _ *bus.Event) error {
		time.Sleep(30 * time.Millisecond)
		done = true
		return nil
	})
	require.NoError(t, err)

	d.Shutdown(time.Second)
	assert.True(t, done)
}
