package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tagforge/internal/types"
)

func TestNewComponentRegistry(t *testing.T) {
	registry := NewComponentRegistry()

	assert.NotNil(t, registry)
	assert.Equal(t, 0, registry.Count())
	assert.Empty(t, registry.Names())
}

func TestRegisterAndGet(t *testing.T) {
	registry := NewComponentRegistry()
	component := &types.ComponentInfo{Name: "card", FilePath: "components/card.html", Hash: "1"}

	registry.Register(component)

	retrieved, exists := registry.Get("card")
	assert.True(t, exists)
	assert.Same(t, component, retrieved)
	assert.Equal(t, 1, registry.Count())

	_, exists = registry.Get("missing")
	assert.False(t, exists)
}

func TestNamesAreSorted(t *testing.T) {
	registry := NewComponentRegistry()
	for _, name := range []string{"zeta", "Alpha", "comp1", "alpha"} {
		registry.Register(&types.ComponentInfo{Name: name})
	}

	assert.Equal(t, []string{"Alpha", "alpha", "comp1", "zeta"}, registry.Names())

	all := registry.GetAll()
	require.Len(t, all, 4)
	assert.Equal(t, "Alpha", all[0].Name)
}

func TestWatchEvents(t *testing.T) {
	registry := NewComponentRegistry()
	events := registry.Watch()

	registry.Register(&types.ComponentInfo{Name: "card", Hash: "a"})
	registry.Register(&types.ComponentInfo{Name: "card", Hash: "a"})
	registry.Register(&types.ComponentInfo{Name: "card", Hash: "b"})
	registry.Remove("card")
	registry.Remove("card")

	want := []types.EventType{types.EventTypeAdded, types.EventTypeUpdated, types.EventTypeRemoved}
	for _, w := range want {
		select {
		case ev := <-events:
			assert.Equal(t, w, ev.Type)
			assert.Equal(t, "card", ev.Component.Name)
			assert.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("expected %s event", w)
		}
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}

	registry.UnWatch(events)
	_, open := <-events
	assert.False(t, open)
}

func TestRetain(t *testing.T) {
	registry := NewComponentRegistry()
	registry.Register(&types.ComponentInfo{Name: "a"})
	registry.Register(&types.ComponentInfo{Name: "b"})
	registry.Register(&types.ComponentInfo{Name: "c"})

	registry.Retain(map[string]bool{"b": true})
	assert.Equal(t, []string{"b"}, registry.Names())
}

func TestHasDefault(t *testing.T) {
	assert.True(t, (&types.ComponentInfo{FilePath: "x.html"}).HasDefault())
	assert.False(t, (&types.ComponentInfo{Dir: "x"}).HasDefault())
}
