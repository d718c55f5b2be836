package status

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyabot/nyabot/api"
	"github.com/nyabot/nyabot/bus"
	"github.com/nyabot/nyabot/command"
	"github.com/nyabot/nyabot/event"
	"github.com/nyabot/nyabot/onebot"
	"github.com/nyabot/nyabot/plugin"
	"github.com/nyabot/nyabot/schedule"
	"github.com/nyabot/nyabot/service"
)

type recordingSend struct {
	actions []string
	params  []interface{}
}

func (r *recordingSend) send(_ context.Context, action string, params interface{}, _ time.Duration) (*onebot.Response, error) {
	r.actions = append(r.actions, action)
	r.params = append(r.params, params)
	return &onebot.Response{Status: "ok", Data: json.RawMessage(`{"message_id": 1}`)}, nil
}

func TestStatusCountsAndReports(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "status")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, plugin.ManifestFile),
		[]byte("name = \"status\"\nversion = \"1.0.0\"\n"), 0o644))

	rec := &recordingSend{}
	caller := api.New(rec.send, time.Second)
	b := bus.New()
	commands := command.NewRegistry([]string{"/"}, false)
	factories := plugin.NewFactoryRegistry()
	require.NoError(t, factories.Register("status", New))

	loader := plugin.NewLoader(plugin.LoaderOptions{
		Dir:       root,
		DataDir:   t.TempDir(),
		Factories: factories,
		Bus:       b,
		API:       caller,
		Services:  service.NewManager(),
		Schedule:  schedule.NewService(),
		Commands:  commands,
	})
	require.NoError(t, loader.LoadAll(context.Background()))

	// Two messages and a heartbeat flow over the bus.
	for i := 0; i < 2; i++ {
		require.NoError(t, b.PublishSync(&bus.Event{
			Type: event.TypeGroupMessage,
			Time: time.Now(),
		}, time.Second))
	}
	require.NoError(t, b.PublishSync(&bus.Event{
		Type: event.TypeHeartbeat,
		Time: time.Now(),
	}, time.Second))

	pm := &event.PrivateMessage{}
	pm.UserID = "42"
	pm.MessageID = "7"
	pm.Message = onebot.NewText("/status")
	pm.BindAPI(caller)

	runner := command.NewRunner(commands, b)
	require.True(t, runner.Run(context.Background(), pm))

	require.Equal(t, []string{"send_private_msg"}, rec.actions)
	blob, err := json.Marshal(rec.params[0])
	require.NoError(t, err)
	assert.Contains(t, string(blob), "2 messages")
	assert.NotContains(t, string(blob), "last heartbeat never")

	// The alias resolves too.
	require.True(t, runner.Run(context.Background(), func() event.MessageEvent {
		pm := &event.PrivateMessage{}
		pm.UserID = "42"
		pm.Message = onebot.NewText("/st")
		pm.BindAPI(caller)
		return pm
	}()))
}
