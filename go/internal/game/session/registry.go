package session

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gridduel/go/internal/game/messages"
	"github.com/mcdev12/gridduel/go/internal/game/transport"
)

// Room numbers are 4-digit labels.
const (
	roomMin = 1000
	roomMax = 9999
)

// Config holds per-connection behavior shared by every receiver the registry
// accepts.
type Config struct {
	// TurnSeconds is the countdown duration for one turn.
	TurnSeconds int
	// Debug escalates decode failures from recoverable to fatal.
	Debug bool
}

// DefaultConfig returns the stock session configuration.
func DefaultConfig() Config {
	return Config{TurnSeconds: 30}
}

// Registry is the process-wide collection of live receivers. It owns identity
// lookup, matchmaking, room allocation and the pairing relation. Created at
// server start, drained at server stop.
type Registry struct {
	cfg   Config
	auth  AuthPolicy
	clock clockwork.Clock

	mu        sync.RWMutex
	receivers []*Receiver

	// pairMu serializes every change to the mutual peer references so the
	// pairing symmetry invariant holds at all times.
	pairMu sync.RWMutex

	hookMu      sync.Mutex
	onValidated func(*Receiver)
}

// NewRegistry creates an empty registry. A nil policy accepts everyone.
func NewRegistry(cfg Config, auth AuthPolicy, clock clockwork.Clock) *Registry {
	if auth == nil {
		auth = AllowAll{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{cfg: cfg, auth: auth, clock: clock}
}

// Accept wraps a freshly established transport in a receiver, registers it
// and starts its loops.
func (g *Registry) Accept(conn transport.Transport) *Receiver {
	r := newReceiver(g, conn)
	g.add(r)
	r.Start()
	log.Info().
		Str("receiver_id", r.id.String()).
		Int("total_connections", g.Count()).
		Msg("connection accepted")
	return r
}

// SetOnValidated installs the hook fired after a receiver binds an identity.
// Used by the admin collaborator.
func (g *Registry) SetOnValidated(fn func(*Receiver)) {
	g.hookMu.Lock()
	defer g.hookMu.Unlock()
	g.onValidated = fn
}

func (g *Registry) notifyValidated(r *Receiver) {
	g.hookMu.Lock()
	fn := g.onValidated
	g.hookMu.Unlock()
	if fn != nil {
		fn(r)
	}
}

func (g *Registry) add(r *Receiver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.receivers = append(g.receivers, r)
}

// Remove prunes a receiver from the registry. Called on disconnect.
func (g *Registry) Remove(r *Receiver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, other := range g.receivers {
		if other == r {
			g.receivers = append(g.receivers[:i], g.receivers[i+1:]...)
			return
		}
	}
}

// Receivers returns a snapshot of the live receivers.
func (g *Registry) Receivers() []*Receiver {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Receiver, len(g.receivers))
	copy(out, g.receivers)
	return out
}

// Count reports the number of live receivers.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.receivers)
}

// FindByEmail returns the receiver bound to the given identity, skipping
// exclude. Identities are bound at validation, so unvalidated receivers never
// match.
func (g *Registry) FindByEmail(email string, exclude *Receiver) *Receiver {
	if email == "" {
		return nil
	}
	for _, r := range g.Receivers() {
		if r == exclude {
			continue
		}
		if r.Email() == email {
			return r
		}
	}
	return nil
}

// FindAvailable returns the receiver bound to the given identity if it is in
// an available status, skipping exclude.
func (g *Registry) FindAvailable(email string, exclude *Receiver) *Receiver {
	r := g.FindByEmail(email, exclude)
	if r == nil || !r.Available() {
		return nil
	}
	return r
}

// Pair sets the mutual peer references of a and b and moves both into
// session. The whole update happens under the pairing lock so no observer
// ever sees a half-formed pairing. A side that is already paired, or no
// longer in an available status, refuses the pairing; an existing pairing is
// never overwritten.
func (g *Registry) Pair(a, b *Receiver) error {
	g.pairMu.Lock()
	defer g.pairMu.Unlock()
	if a.peer != nil || !a.Available() {
		return fmt.Errorf("%s is no longer available", a.Email())
	}
	if b.peer != nil || !b.Available() {
		return fmt.Errorf("%s is no longer available", b.Email())
	}
	a.peer = b
	b.peer = a
	a.setStatus(StatusInSession)
	b.setStatus(StatusInSession)
	return nil
}

// Unpair atomically breaks r's pairing, if any. Both sides drop their room
// number back into the pool, the former peer is moved back to validated and
// returned; the caller decides r's own next status.
func (g *Registry) Unpair(r *Receiver) *Receiver {
	g.pairMu.Lock()
	defer g.pairMu.Unlock()
	peer := r.peer
	if peer == nil {
		return nil
	}
	r.peer = nil
	peer.peer = nil
	r.setRoom(messages.RoomNone)
	peer.setRoom(messages.RoomNone)
	peer.setStatus(StatusValidated)
	return peer
}

// Peer returns r's current session partner, or nil.
func (g *Registry) Peer(r *Receiver) *Receiver {
	g.pairMu.RLock()
	defer g.pairMu.RUnlock()
	return r.peer
}

// RoomInUse reports whether a room number is already held by any receiver
// with lobby or session status, skipping the excluded receivers. Rooms held
// by idle receivers do not count.
func (g *Registry) RoomInUse(room int, exclude ...*Receiver) bool {
	for _, r := range g.Receivers() {
		if slices.Contains(exclude, r) {
			continue
		}
		st := r.Status()
		if (st == StatusInProcess || st == StatusInSession) && r.Room() == room {
			return true
		}
	}
	return false
}

// AllocateRoom samples 4-digit room numbers until one is free. Rejection
// sampling is fine for the small population a single process serves.
func (g *Registry) AllocateRoom() int {
	for {
		room := roomMin + rand.Intn(roomMax-roomMin+1)
		if !g.RoomInUse(room) {
			return room
		}
	}
}

// TablesInProcess lists the {room, identity} of every receiver currently
// hosting a lobby table, skipping exclude.
func (g *Registry) TablesInProcess(exclude *Receiver) []messages.TableProperties {
	var tables []messages.TableProperties
	for _, r := range g.Receivers() {
		if r == exclude {
			continue
		}
		if r.Status() == StatusInProcess {
			tables = append(tables, messages.TableProperties{
				Room:  r.Room(),
				Email: r.Email(),
			})
		}
	}
	return tables
}

// BroadcastLobby pushes the current table list to every idle receiver other
// than origin, so waiting clients see an up-to-date lobby.
func (g *Registry) BroadcastLobby(origin *Receiver) {
	update := messages.UpdateTablesInProcessRequest{Tables: g.TablesInProcess(nil)}
	env, err := messages.NewRequest(messages.KindUpdateTablesInProcessRequest, update)
	if err != nil {
		log.Error().Err(err).Msg("failed to build lobby update")
		return
	}
	for _, r := range g.Receivers() {
		if r == origin {
			continue
		}
		if r.Status() == StatusValidated {
			r.Send(env)
		}
	}
}

// Drain disconnects every live receiver. Called on server stop.
func (g *Registry) Drain() {
	for _, r := range g.Receivers() {
		r.Disconnect()
	}
}

// ConnectionStats is one receiver's entry in the admin snapshot.
type ConnectionStats struct {
	ID         string `json:"id"`
	Email      string `json:"email,omitempty"`
	Status     string `json:"status"`
	Room       int    `json:"room"`
	Wins       int    `json:"wins"`
	TotalBytes int64  `json:"total_bytes"`
}

// Stats is the snapshot served to the admin poller.
type Stats struct {
	TotalConnections int               `json:"total_connections"`
	ActiveSessions   int               `json:"active_sessions"`
	Connections      []ConnectionStats `json:"connections"`
}

// Snapshot captures the current state of every live receiver.
func (g *Registry) Snapshot() Stats {
	receivers := g.Receivers()
	stats := Stats{
		TotalConnections: len(receivers),
		Connections:      make([]ConnectionStats, 0, len(receivers)),
	}
	inSession := 0
	for _, r := range receivers {
		st := r.Status()
		if st == StatusInSession {
			inSession++
		}
		stats.Connections = append(stats.Connections, ConnectionStats{
			ID:         r.ID().String(),
			Email:      r.Email(),
			Status:     st.String(),
			Room:       r.Room(),
			Wins:       r.Wins(),
			TotalBytes: r.TotalBytes(),
		})
	}
	stats.ActiveSessions = inSession / 2
	return stats
}
