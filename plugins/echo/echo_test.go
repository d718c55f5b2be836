package echo

import (
	"context"
	"encoding/json"
	"fmt"
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

func loadEcho(t *testing.T) (*command.Registry, *recordingSend) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "echo")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := fmt.Sprintf("name = %q\nversion = %q\n", "echo", "1.0.0")
	require.NoError(t, os.WriteFile(filepath.Join(dir, plugin.ManifestFile), []byte(manifest), 0o644))

	rec := &recordingSend{}
	commands := command.NewRegistry([]string{"/"}, false)
	factories := plugin.NewFactoryRegistry()
	require.NoError(t, factories.Register("echo", New))

	loader := plugin.NewLoader(plugin.LoaderOptions{
		Dir:       root,
		DataDir:   t.TempDir(),
		Factories: factories,
		Bus:       bus.New(),
		API:       api.New(rec.send, time.Second),
		Services:  service.NewManager(),
		Schedule:  schedule.NewService(),
		Commands:  commands,
	})
	require.NoError(t, loader.LoadAll(context.Background()))
	inst, ok := loader.Get("echo")
	require.True(t, ok)
	require.Equal(t, plugin.StateRunning, inst.State)
	return commands, rec
}

func message(text string, caller *api.Caller) event.MessageEvent {
	pm := &event.PrivateMessage{}
	pm.UserID = "42"
	pm.MessageID = "7"
	pm.Message = onebot.NewText(text)
	pm.BindAPI(caller)
	return pm
}

func TestEchoRepeatsTail(t *testing.T) {
	commands, rec := loadEcho(t)
	runner := command.NewRunner(commands, bus.New())

	caller := api.New(rec.send, time.Second)
	handled := runner.Run(context.Background(), message("/echo hello there", caller))
	require.True(t, handled)

	require.Equal(t, []string{"send_private_msg"}, rec.actions)
	blob, err := json.Marshal(rec.params[0])
	require.NoError(t, err)
	assert.Contains(t, string(blob), "hello there")
}

func TestEchoEmptyTail(t *testing.T) {
	commands, rec := loadEcho(t)
	runner := command.NewRunner(commands, bus.New())

	caller := api.New(rec.send, time.Second)
	require.True(t, runner.Run(context.Background(), message("/echo", caller)))

	blob, err := json.Marshal(rec.params[0])
	require.NoError(t, err)
	assert.Contains(t, string(blob), "echo what?")
}
