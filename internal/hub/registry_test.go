package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_JoinIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Join("c1", "u1")
	r.Join("c1", "u1")
	r.Join("c1", "u2")

	members := r.MembersOf("c1")
	assert.Len(t, members, 2)
	assert.ElementsMatch(t, []string{"u1", "u2"}, members)
}

func TestRegistry_LeaveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Leave("c1", "ghost")
	r.Join("c1", "u1")
	r.Leave("c1", "ghost")

	assert.Equal(t, []string{"u1"}, r.MembersOf("c1"))
}

func TestRegistry_RemoveHandleClearsAllRooms(t *testing.T) {
	r := NewRegistry()
	r.Join("c1", "conn1")
	r.Join("c2", "conn1")
	r.Join("c2", "conn2")

	r.RemoveHandle("conn1")

	assert.Empty(t, r.MembersOf("c1"))
	assert.Equal(t, []string{"conn2"}, r.MembersOf("c2"))
}
