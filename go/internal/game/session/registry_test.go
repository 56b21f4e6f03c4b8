package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gridduel/go/internal/game/messages"
	"github.com/mcdev12/gridduel/go/internal/game/transport"
)

// quietReceiver builds a registered receiver without running its loops, for
// exercising registry bookkeeping directly.
func quietReceiver(t *testing.T, g *Registry, email string) *Receiver {
	t.Helper()
	server, _ := transport.NewPipe()
	r := newReceiver(g, server)
	r.bindIdentity(email)
	g.add(r)
	return r
}

func TestPairSymmetry(t *testing.T) {
	g := newTestRegistry(30)
	a := quietReceiver(t, g, "a@test.io")
	b := quietReceiver(t, g, "b@test.io")

	require.NoError(t, g.Pair(a, b))

	assert.Same(t, b, a.Peer())
	assert.Same(t, a, b.Peer())
	assert.Equal(t, StatusInSession, a.Status())
	assert.Equal(t, StatusInSession, b.Status())
}

func TestUnpairTeardown(t *testing.T) {
	g := newTestRegistry(30)
	a := quietReceiver(t, g, "a@test.io")
	b := quietReceiver(t, g, "b@test.io")
	require.NoError(t, g.Pair(a, b))
	a.setRoom(4444)
	b.setRoom(4444)

	peer := g.Unpair(a)

	require.Same(t, b, peer)
	assert.Nil(t, a.Peer())
	assert.Nil(t, b.Peer())
	assert.Equal(t, StatusValidated, b.Status(), "former peer returns to validated")
	assert.Equal(t, messages.RoomNone, a.Room(), "room released on teardown")
	assert.Equal(t, messages.RoomNone, b.Room(), "room released on teardown")
	assert.False(t, g.RoomInUse(4444), "released room returns to the pool")

	assert.Nil(t, g.Unpair(a), "unpairing an unpaired receiver is a no-op")
}

func TestPairRefusesBusyReceivers(t *testing.T) {
	g := newTestRegistry(30)
	a := quietReceiver(t, g, "a@test.io")
	b := quietReceiver(t, g, "b@test.io")
	c := quietReceiver(t, g, "c@test.io")
	require.NoError(t, g.Pair(a, b))

	require.Error(t, g.Pair(a, c), "a paired receiver never pairs again")
	require.Error(t, g.Pair(c, b), "an existing pairing is never overwritten")

	assert.Same(t, b, a.Peer())
	assert.Same(t, a, b.Peer())
	assert.Nil(t, c.Peer())
	assert.Equal(t, StatusValidated, c.Status())

	server, _ := transport.NewPipe()
	raw := newReceiver(g, server)
	g.add(raw)
	require.Error(t, g.Pair(c, raw), "unvalidated receivers cannot pair")
	assert.Nil(t, c.Peer())
}

func TestFindAvailable(t *testing.T) {
	g := newTestRegistry(30)
	a := quietReceiver(t, g, "a@test.io")
	b := quietReceiver(t, g, "b@test.io")

	assert.Same(t, b, g.FindAvailable("b@test.io", a))
	assert.Nil(t, g.FindAvailable("b@test.io", b), "excluded receiver never matches")
	assert.Nil(t, g.FindAvailable("ghost@test.io", a))

	require.NoError(t, g.Pair(a, b))
	assert.Nil(t, g.FindAvailable("b@test.io", a), "in-session receivers are unavailable")
}

func TestRoomUniqueness(t *testing.T) {
	g := newTestRegistry(30)

	// Occupy a spread of rooms with lobby and session statuses.
	occupied := map[int]bool{}
	for i := 0; i < 50; i++ {
		r := quietReceiver(t, g, "")
		room := 1000 + i
		r.setRoom(room)
		if i%2 == 0 {
			r.setStatus(StatusInProcess)
		} else {
			r.setStatus(StatusInSession)
		}
		occupied[room] = true
	}

	idle := quietReceiver(t, g, "idle@test.io")
	idle.setRoom(1000)

	for room := range occupied {
		assert.True(t, g.RoomInUse(room))
	}
	assert.True(t, g.RoomInUse(1000),
		"room held by an active receiver must be in use")

	for i := 0; i < 200; i++ {
		room := g.AllocateRoom()
		assert.GreaterOrEqual(t, room, 1000)
		assert.LessOrEqual(t, room, 9999)
		assert.False(t, occupied[room], "allocated room %d collides", room)
	}

	// No duplicates among active receivers at any observation point.
	seen := map[int]int{}
	for _, r := range g.Receivers() {
		st := r.Status()
		if st == StatusInProcess || st == StatusInSession {
			seen[r.Room()]++
		}
	}
	for room, n := range seen {
		assert.Equal(t, 1, n, "room %d held by %d active receivers", room, n)
	}
}

func TestIdleRoomDoesNotBlockAllocation(t *testing.T) {
	g := newTestRegistry(30)
	idle := quietReceiver(t, g, "idle@test.io")
	idle.setRoom(5555)
	// Still validated: its stale room number is not reserved.
	assert.False(t, g.RoomInUse(5555))
}

func TestRemovePrunesReceiver(t *testing.T) {
	g := newTestRegistry(30)
	a := quietReceiver(t, g, "a@test.io")
	b := quietReceiver(t, g, "b@test.io")
	require.Equal(t, 2, g.Count())

	g.Remove(a)
	assert.Equal(t, 1, g.Count())
	assert.Nil(t, g.FindByEmail("a@test.io", nil))
	assert.Same(t, b, g.FindByEmail("b@test.io", nil))

	g.Remove(a)
	assert.Equal(t, 1, g.Count(), "removing twice is harmless")
}

func TestSnapshot(t *testing.T) {
	g := newTestRegistry(30)
	a := quietReceiver(t, g, "a@test.io")
	b := quietReceiver(t, g, "b@test.io")
	quietReceiver(t, g, "c@test.io")
	require.NoError(t, g.Pair(a, b))

	stats := g.Snapshot()
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Len(t, stats.Connections, 3)
}

func TestOnValidatedHook(t *testing.T) {
	g := newTestRegistry(30)
	var notified []string
	g.SetOnValidated(func(r *Receiver) { notified = append(notified, r.Email()) })

	r := quietReceiver(t, g, "")
	r.bindIdentity("a@test.io")
	g.notifyValidated(r)

	require.Equal(t, []string{"a@test.io"}, notified)
}
