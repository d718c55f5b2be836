package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyabot/nyabot/bus"
	"github.com/nyabot/nyabot/event"
	"github.com/nyabot/nyabot/filter"
	"github.com/nyabot/nyabot/onebot"
)

func textEvent(text string) event.MessageEvent {
	pm := &event.PrivateMessage{}
	pm.UserID = "42"
	pm.Message = onebot.NewText(text)
	return pm
}

func noopHandler(context.Context, event.MessageEvent, *Bound) error { return nil }

func TestBackupScenario(t *testing.T) {
	reg := NewRegistry([]string{"/"}, false)
	var got *Bound
	require.NoError(t, reg.Register(&Spec{
		Path: []string{"backup"},
		Params: []Param{
			{Name: "source", Type: TypeString, Required: true},
			{Name: "dest", Type: TypeString, Named: true},
		},
		Options: []Option{{Short: "v"}, {Long: "force"}},
		Handler: func(_ context.Context, _ event.MessageEvent, args *Bound) error {
			got = args
			return nil
		},
	}))

	runner := NewRunner(reg, bus.New())
	dispatched := runner.Run(context.Background(), textEvent(`/backup "my files" --dest=/bak -vf`))

	require.True(t, dispatched)
	require.NotNil(t, got)
	assert.Equal(t, "my files", got.String("source"))
	assert.Equal(t, "/bak", got.String("dest"))
	assert.True(t, got.Flag("v"))
	assert.True(t, got.Flag("f"))
	assert.False(t, got.Flag("force"))
}

func TestPrefixConflictDetected(t *testing.T) {
	reg := NewRegistry(nil, false)
	require.NoError(t, reg.Register(&Spec{Path: []string{"a"}, Prefixes: []string{"/"}, Handler: noopHandler}))
	require.NoError(t, reg.Register(&Spec{Path: []string{"b"}, Prefixes: []string{"//"}, Handler: noopHandler}))

	resolver := NewResolver(reg)
	_, err := resolver.Resolve([]Element{{Content: "/a"}})
	require.Error(t, err)
	var conflict *PrefixConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "/", conflict.Shorter)
	assert.Equal(t, "//", conflict.Longer)
}

func TestResolverPrefersNonEmptyPrefix(t *testing.T) {
	reg := NewRegistry([]string{"", "/"}, false)
	require.NoError(t, reg.Register(&Spec{Path: []string{"ping"}, Handler: noopHandler}))

	resolver := NewResolver(reg)
	m, err := resolver.Resolve([]Element{{Content: "/ping"}})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "/", m.Prefix)

	m, err = resolver.Resolve([]Element{{Content: "ping"}})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "", m.Prefix)
}

func TestResolverMultiWordPath(t *testing.T) {
	reg := NewRegistry([]string{"/"}, false)
	require.NoError(t, reg.Register(&Spec{Path: []string{"config", "set"}, Handler: noopHandler}))
	require.NoError(t, reg.Register(&Spec{Path: []string{"config"}, Handler: noopHandler}))

	resolver := NewResolver(reg)

	m, err := resolver.Resolve([]Element{{Content: "/config"}, {Content: "set"}, {Content: "key"}})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.PathWords, "longest path wins")

	m, err = resolver.Resolve([]Element{{Content: "/config"}, {Content: "show"}})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.PathWords)
}

func TestResolverAlias(t *testing.T) {
	reg := NewRegistry([]string{"/"}, false)
	spec := &Spec{Path: []string{"status"}, Aliases: [][]string{{"st"}}, Handler: noopHandler}
	require.NoError(t, reg.Register(spec))

	resolver := NewResolver(reg)
	m, err := resolver.Resolve([]Element{{Content: "/st"}})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Same(t, spec, m.Spec)
}

func TestResolverNonCommand(t *testing.T) {
	reg := NewRegistry([]string{"/"}, false)
	require.NoError(t, reg.Register(&Spec{Path: []string{"ping"}, Handler: noopHandler}))

	resolver := NewResolver(reg)
	m, err := resolver.Resolve([]Element{{Content: "hello"}, {Content: "there"}})
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = resolver.Resolve(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestResolverEmptyPrefixRegistered(t *testing.T) {
	reg := NewRegistry([]string{""}, false)
	require.NoError(t, reg.Register(&Spec{Path: []string{"ping"}, Handler: noopHandler}))

	resolver := NewResolver(reg)
	m, err := resolver.Resolve([]Element{{Content: "ping"}})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "", m.Prefix)
}

func TestResolverCaseInsensitive(t *testing.T) {
	reg := NewRegistry([]string{"/"}, false)
	require.NoError(t, reg.Register(&Spec{Path: []string{"Ping"}, Handler: noopHandler}))

	resolver := NewResolver(reg)
	m, err := resolver.Resolve([]Element{{Content: "/PING"}})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestUnregisterOwnerRemovesCommands(t *testing.T) {
	reg := NewRegistry([]string{"/"}, false)
	require.NoError(t, reg.Register(&Spec{Path: []string{"a"}, Owner: "p1", Handler: noopHandler}))
	require.NoError(t, reg.Register(&Spec{Path: []string{"b"}, Owner: "p2", Handler: noopHandler}))

	resolver := NewResolver(reg)
	m, err := resolver.Resolve([]Element{{Content: "/a"}})
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, 1, reg.UnregisterOwner("p1"))

	// Index rebuilds lazily on the next resolve.
	m, err = resolver.Resolve([]Element{{Content: "/a"}})
	require.NoError(t, err)
	assert.Nil(t, m)
	m, err = resolver.Resolve([]Element{{Content: "/b"}})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestBindDefaultsChoicesAndConversion(t *testing.T) {
	spec := &Spec{
		Path: []string{"serve"},
		Params: []Param{
			{Name: "port", Type: TypeInt, Named: true, Default: int64(8080)},
			{Name: "mode", Type: TypeString, Named: true, Choices: []string{"dev", "prod"}, Default: "dev"},
			{Name: "ratio", Type: TypeFloat, Named: true},
			{Name: "watch", Type: TypeBool, Named: true},
		},
		Handler: noopHandler,
	}

	tokens, err := Tokenize(`serve --mode=prod --ratio=0.5 --watch=1`)
	require.NoError(t, err)
	args, bindErr := Bind(spec, Parse(tokens), 1)
	require.NoError(t, bindErr)

	assert.Equal(t, int64(8080), args.Int("port"))
	assert.Equal(t, "prod", args.String("mode"))
	assert.Equal(t, 0.5, args.Float("ratio"))
	assert.True(t, args.Bool("watch"))

	tokens, _ = Tokenize(`serve --port=not-a-number`)
	_, bindErr = Bind(spec, Parse(tokens), 1)
	var be *BindingError
	require.ErrorAs(t, bindErr, &be)
	assert.Equal(t, "port", be.Param)

	tokens, _ = Tokenize(`serve --mode=yolo`)
	_, bindErr = Bind(spec, Parse(tokens), 1)
	require.ErrorAs(t, bindErr, &be)
	assert.Equal(t, "mode", be.Param)
}

func TestBindOptionGroups(t *testing.T) {
	spec := &Spec{
		Path:    []string{"scan"},
		Groups:  []Group{{Name: "speed", Members: []string{"fast", "normal", "safe"}, Default: "normal"}},
		Handler: noopHandler,
	}

	tokens, _ := Tokenize(`scan --fast`)
	args, err := Bind(spec, Parse(tokens), 1)
	require.NoError(t, err)
	assert.Equal(t, "fast", args.Group["speed"])

	tokens, _ = Tokenize(`scan`)
	args, err = Bind(spec, Parse(tokens), 1)
	require.NoError(t, err)
	assert.Equal(t, "normal", args.Group["speed"])

	tokens, _ = Tokenize(`scan --fast --safe`)
	_, err = Bind(spec, Parse(tokens), 1)
	var be *BindingError
	require.ErrorAs(t, err, &be)
}

func TestBindVariadicTail(t *testing.T) {
	spec := &Spec{
		Path:     []string{"rm"},
		Params:   []Param{{Name: "first", Type: TypeString, Required: true}},
		Variadic: true,
		Handler:  noopHandler,
	}

	tokens, _ := Tokenize(`rm a.txt b.txt "c d.txt"`)
	args, err := Bind(spec, Parse(tokens), 1)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", args.String("first"))
	assert.Equal(t, []string{"b.txt", "c d.txt"}, args.Tail)
}

func TestRunnerFilterDenies(t *testing.T) {
	reg := NewRegistry([]string{"/"}, false)
	called := false
	require.NoError(t, reg.Register(&Spec{
		Path:    []string{"admin"},
		Filters: []filter.Filter{filter.Group()},
		Handler: func(context.Context, event.MessageEvent, *Bound) error {
			called = true
			return nil
		},
	}))

	runner := NewRunner(reg, bus.New())
	dispatched := runner.Run(context.Background(), textEvent("/admin"))
	assert.False(t, dispatched)
	assert.False(t, called)
}

func TestRunnerPublishesBindFailure(t *testing.T) {
	reg := NewRegistry([]string{"/"}, false)
	require.NoError(t, reg.Register(&Spec{
		Path:    []string{"need"},
		Params:  []Param{{Name: "what", Type: TypeString, Required: true}},
		Handler: noopHandler,
	}))

	b := bus.New()
	failures := make(chan *bus.Event, 1)
	_, err := b.Subscribe(event.TypeBindFailed, func(_ context.Context, ev *bus.Event) error {
		failures <- ev
		return nil
	})
	require.NoError(t, err)

	runner := NewRunner(reg, b)
	dispatched := runner.Run(context.Background(), textEvent("/need"))
	assert.False(t, dispatched)

	select {
	case ev := <-failures:
		failure, ok := ev.Data.(*BindFailure)
		require.True(t, ok)
		assert.Equal(t, "what", failure.Err.Param)
	case <-time.After(time.Second):
		t.Fatal("bind failure never published")
	}
}

func TestRunnerIgnoresPlainChat(t *testing.T) {
	reg := NewRegistry([]string{"/"}, false)
	require.NoError(t, reg.Register(&Spec{Path: []string{"ping"}, Handler: noopHandler}))

	runner := NewRunner(reg, bus.New())
	assert.False(t, runner.Run(context.Background(), textEvent("just chatting about /nothing")))
	assert.False(t, runner.Run(context.Background(), textEvent("")))
}

func TestStrictPositionalRejectsSurplus(t *testing.T) {
	reg := NewRegistry([]string{"/"}, false)
	reg.SetStrictPositional(true)
	require.NoError(t, reg.Register(&Spec{
		Path:    []string{"take"},
		Params:  []Param{{Name: "one", Type: TypeString, Required: true}},
		Handler: noopHandler,
	}))

	b := bus.New()
	failures := make(chan *bus.Event, 1)
	_, err := b.Subscribe(event.TypeBindFailed, func(_ context.Context, ev *bus.Event) error {
		failures <- ev
		return nil
	})
	require.NoError(t, err)

	runner := NewRunner(reg, b)

	// Exact arity still binds.
	assert.True(t, runner.Run(context.Background(), textEvent("/take this")))

	// A surplus element is a binding failure instead of being ignored.
	assert.False(t, runner.Run(context.Background(), textEvent("/take this extra")))
	select {
	case ev := <-failures:
		failure, ok := ev.Data.(*BindFailure)
		require.True(t, ok)
		assert.Contains(t, failure.Err.Reason, "extra")
	case <-time.After(time.Second):
		t.Fatal("no bind-failure event published")
	}

	// The lax default keeps ignoring surplus.
	reg.SetStrictPositional(false)
	assert.True(t, runner.Run(context.Background(), textEvent("/take this extra")))
}
