package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyabot/nyabot/errors"
)

type fakeService struct {
	name    string
	loadErr error
	events  *[]string
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) OnLoad(context.Context) error {
	*f.events = append(*f.events, "load:"+f.name)
	return f.loadErr
}

func (f *fakeService) OnClose(context.Context) error {
	*f.events = append(*f.events, "close:"+f.name)
	if f.name == "badclose" {
		return errors.New("close exploded")
	}
	return nil
}

func TestLoadOrderAndReverseClose(t *testing.T) {
	var events []string
	m := NewManager()
	require.NoError(t, m.Register(&fakeService{name: "c", events: &events}, Requires("b")))
	require.NoError(t, m.Register(&fakeService{name: "a", events: &events}))
	require.NoError(t, m.Register(&fakeService{name: "b", events: &events}, Requires("a")))

	require.NoError(t, m.LoadAll(context.Background()))
	assert.Equal(t, []string{"load:a", "load:b", "load:c"}, events)

	m.CloseAll(context.Background())
	assert.Equal(t, []string{"load:a", "load:b", "load:c", "close:c", "close:b", "close:a"}, events)
	assert.False(t, m.Loaded("a"))
}

func TestLazyLoadsOnGet(t *testing.T) {
	var events []string
	m := NewManager()
	require.NoError(t, m.Register(&fakeService{name: "base", events: &events}, Lazy()))
	require.NoError(t, m.Register(&fakeService{name: "thing", events: &events}, Lazy(), Requires("base")))

	require.NoError(t, m.LoadAll(context.Background()))
	assert.Empty(t, events, "lazy services stay down until requested")

	svc, err := m.Get(context.Background(), "thing")
	require.NoError(t, err)
	assert.Equal(t, "thing", svc.Name())
	assert.Equal(t, []string{"load:base", "load:thing"}, events)

	// Second Get does not reload.
	_, err = m.Get(context.Background(), "thing")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLoadFailureStopsEagerChain(t *testing.T) {
	var events []string
	m := NewManager()
	require.NoError(t, m.Register(&fakeService{name: "ok", events: &events}))
	require.NoError(t, m.Register(&fakeService{name: "boom", events: &events, loadErr: errors.New("nope")}))
	require.NoError(t, m.Register(&fakeService{name: "after", events: &events}))

	err := m.LoadAll(context.Background())
	require.Error(t, err)
	assert.True(t, m.Loaded("ok"))
	assert.False(t, m.Loaded("after"))

	// Cleanup still closes what came up.
	m.CloseAll(context.Background())
	assert.Contains(t, events, "close:ok")
}

func TestCloseFailureIsIsolated(t *testing.T) {
	var events []string
	m := NewManager()
	require.NoError(t, m.Register(&fakeService{name: "first", events: &events}))
	require.NoError(t, m.Register(&fakeService{name: "badclose", events: &events}))

	require.NoError(t, m.LoadAll(context.Background()))
	m.CloseAll(context.Background())
	assert.Equal(t, []string{"load:first", "load:badclose", "close:badclose", "close:first"}, events)
}

func TestRequirementCycle(t *testing.T) {
	var events []string
	m := NewManager()
	require.NoError(t, m.Register(&fakeService{name: "x", events: &events}, Requires("y")))
	require.NoError(t, m.Register(&fakeService{name: "y", events: &events}, Requires("x")))

	assert.Error(t, m.LoadAll(context.Background()))
}

func TestUnknownServiceAndDuplicates(t *testing.T) {
	var events []string
	m := NewManager()
	require.NoError(t, m.Register(&fakeService{name: "a", events: &events}))
	assert.Error(t, m.Register(&fakeService{name: "a", events: &events}))

	_, err := m.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
