package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/spell-duel-backend/internal/types"
)

func TestRegister_DuplicateIsRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("c1", "Alice", make(chan types.Outbound, 1)))
	require.ErrorIs(t, r.Register("c1", "Alice", make(chan types.Outbound, 1)), ErrDuplicateConnection)
	assert.Equal(t, 1, r.Len())
}

func TestIdentify_NameIsImmutableOnceSet(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("c1", "", make(chan types.Outbound, 1)))

	name, err := r.Identify("c1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	name, err = r.Identify("c1", "Mallory")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	_, err = r.Identify("ghost", "x")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAttachDetach_Idempotent(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("c1", "Alice", make(chan types.Outbound, 1)))

	require.NoError(t, r.Attach("c1", "A"))
	require.NoError(t, r.Attach("c1", "A"))
	assert.Equal(t, []string{"c1"}, r.Attached("A"))

	room, name, err := r.Lookup("c1")
	require.NoError(t, err)
	assert.Equal(t, "A", room)
	assert.Equal(t, "Alice", name)

	r.Detach("c1")
	r.Detach("c1")
	assert.Empty(t, r.Attached("A"))
	room, _, err = r.Lookup("c1")
	require.NoError(t, err)
	assert.Empty(t, room)

	require.ErrorIs(t, r.Attach("ghost", "A"), ErrNotFound)
}

func TestAttach_MovesBetweenRooms(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("c1", "Alice", make(chan types.Outbound, 1)))
	require.NoError(t, r.Attach("c1", "A"))
	require.NoError(t, r.Attach("c1", "B"))

	assert.Empty(t, r.Attached("A"))
	assert.Equal(t, []string{"c1"}, r.Attached("B"))
}

func TestLookup_NotFound(t *testing.T) {
	_, _, err := New().Lookup("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_RunsHookWithAttachedRoom(t *testing.T) {
	r := New()
	type call struct{ id, name, room string }
	var calls []call
	r.OnRemove(func(id, name, room string) { calls = append(calls, call{id, name, room}) })

	require.NoError(t, r.Register("c1", "Alice", make(chan types.Outbound, 1)))
	require.NoError(t, r.Register("c2", "Bob", make(chan types.Outbound, 1)))
	require.NoError(t, r.Attach("c1", "A"))

	r.Remove("c1")
	r.Remove("c2")
	r.Remove("c2") // second removal is a no-op

	assert.Equal(t, []call{{"c1", "Alice", "A"}, {"c2", "Bob", ""}}, calls)
	assert.Empty(t, r.Attached("A"))
	assert.Zero(t, r.Len())
}

func TestSend_DropsWhenGoneOrFull(t *testing.T) {
	r := New()
	out := make(chan types.Outbound, 1)
	require.NoError(t, r.Register("c1", "Alice", out))

	assert.True(t, r.Send("c1", types.GameReady{Message: "go"}))
	assert.False(t, r.Send("c1", types.GameReady{Message: "full"}))
	assert.False(t, r.Send("ghost", types.GameReady{}))

	assert.Equal(t, types.GameReady{Message: "go"}, <-out)
}
