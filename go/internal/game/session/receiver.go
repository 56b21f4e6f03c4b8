package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gridduel/go/internal/game/countdown"
	"github.com/mcdev12/gridduel/go/internal/game/messages"
	"github.com/mcdev12/gridduel/go/internal/game/transport"
)

// Status is the lifecycle state of a receiver.
type Status uint8

const (
	StatusConnected Status = iota
	StatusValidated
	StatusInProcess
	StatusInSession
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusValidated:
		return "validated"
	case StatusInProcess:
		return "in_process"
	case StatusInSession:
		return "in_session"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// TurnStatus is a side's position in the ready/turn cycle of a match.
type TurnStatus uint8

const (
	TurnNotReady TurnStatus = iota
	TurnReady
	TurnInTurn
)

func (t TurnStatus) String() string {
	switch t {
	case TurnReady:
		return "ready"
	case TurnInTurn:
		return "in_turn"
	default:
		return "not_ready"
	}
}

// writePollInterval is how often the write loop looks at the outbound queue
// when it is idle.
const writePollInterval = 30 * time.Millisecond

// Receiver is the server-side actor for one client connection. It owns the
// transport, an outbound FIFO queue drained by the write loop, and the
// per-connection countdown clock. A read loop decodes inbound frames and
// dispatches them to handlers.
//
// All mutable state except peer is guarded by mu. The peer back-reference is
// guarded by the registry's pairing lock so that pairing and unpairing are
// atomic from both sides' perspective.
type Receiver struct {
	id       uuid.UUID
	registry *Registry
	conn     transport.Transport
	clock    clockwork.Clock
	debug    bool

	mu         sync.Mutex
	status     Status
	email      string
	queue      []*messages.Envelope
	totalBytes int64
	room       int
	turn       TurnStatus
	wins       int

	// peer is read and written only under registry.pairMu.
	peer *Receiver

	countdown *countdown.Countdown
}

func newReceiver(registry *Registry, conn transport.Transport) *Receiver {
	r := &Receiver{
		id:       uuid.New(),
		registry: registry,
		conn:     conn,
		clock:    registry.clock,
		debug:    registry.cfg.Debug,
		status:   StatusConnected,
		room:     messages.RoomNone,
	}
	r.countdown = countdown.New(registry.clock, registry.cfg.TurnSeconds,
		r.onCountdownTick, r.onCountdownExpire)
	return r
}

// Start launches the read and write loops. They run until the receiver
// disconnects.
func (r *Receiver) Start() {
	go r.readLoop()
	go r.writeLoop()
}

// Send appends a message to the outbound queue. It is safe to call from any
// goroutine, including another receiver's handlers and the countdown
// callback. Messages enqueued after disconnect are dropped.
func (r *Receiver) Send(env *messages.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusDisconnected {
		return
	}
	r.queue = append(r.queue, env)
}

// Disconnect tears the receiver down: it clears any pairing (resetting the
// peer to validated and stopping both countdowns), releases the transport and
// prunes the receiver from the registry. Idempotent.
func (r *Receiver) Disconnect() {
	r.mu.Lock()
	if r.status == StatusDisconnected {
		r.mu.Unlock()
		return
	}
	r.status = StatusDisconnected
	r.mu.Unlock()

	r.countdown.Stop()
	r.countdown.Reset()

	if peer := r.registry.Unpair(r); peer != nil {
		peer.countdown.Stop()
		peer.countdown.Reset()
		peer.setTurn(TurnNotReady)
	}

	r.conn.Close()
	r.registry.Remove(r)

	log.Info().
		Str("receiver_id", r.id.String()).
		Str("email", r.Email()).
		Msg("receiver disconnected")
}

func (r *Receiver) writeLoop() {
	ticker := r.clock.NewTicker(writePollInterval)
	defer ticker.Stop()

	for {
		<-ticker.Chan()
		if r.Status() == StatusDisconnected {
			return
		}
		for {
			env, ok := r.pop()
			if !ok {
				break
			}
			data, err := messages.Encode(env)
			if err != nil {
				log.Error().Err(err).
					Str("receiver_id", r.id.String()).
					Str("kind", string(env.Kind)).
					Msg("failed to encode outbound message")
				continue
			}
			// The message is already off the queue: a failed write drops it
			// and tears the connection down.
			if err := r.conn.WriteMessage(data); err != nil {
				log.Warn().Err(err).
					Str("receiver_id", r.id.String()).
					Msg("transport write failed")
				r.Disconnect()
				return
			}
		}
	}
}

func (r *Receiver) readLoop() {
	for {
		data, err := r.conn.ReadMessage()
		if err != nil {
			if r.Status() != StatusDisconnected {
				log.Debug().Err(err).
					Str("receiver_id", r.id.String()).
					Msg("transport read failed")
			}
			r.Disconnect()
			return
		}
		r.addBytes(int64(len(data)))

		env, err := messages.Decode(data)
		if err != nil {
			// Malformed frames are recoverable; only diagnostic builds treat
			// them as fatal.
			log.Warn().Err(err).
				Str("receiver_id", r.id.String()).
				Msg("dropping undecodable frame")
			if r.debug {
				r.Disconnect()
				return
			}
			continue
		}
		r.dispatch(env)
	}
}

// dispatch routes a decoded message through the handler table. Messages with
// no handler are forwarded verbatim to the paired receiver when one exists,
// which carries generic pass-through traffic such as chat.
func (r *Receiver) dispatch(env *messages.Envelope) {
	if h, ok := handlers[env.Kind]; ok {
		h(r, env)
		return
	}
	if peer := r.Peer(); peer != nil {
		peer.Send(env)
		return
	}
	log.Warn().
		Str("receiver_id", r.id.String()).
		Str("kind", string(env.Kind)).
		Msg("dropping unhandled message from unpaired receiver")
}

func (r *Receiver) pop() (*messages.Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, false
	}
	env := r.queue[0]
	r.queue = r.queue[1:]
	return env, true
}

// ID returns the receiver's unique id.
func (r *Receiver) ID() uuid.UUID { return r.id }

// Peer returns the receiver currently in session with this one, or nil.
func (r *Receiver) Peer() *Receiver { return r.registry.Peer(r) }

func (r *Receiver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Receiver) Email() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.email
}

func (r *Receiver) Room() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.room
}

func (r *Receiver) Turn() TurnStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turn
}

func (r *Receiver) Wins() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wins
}

// TotalBytes reports the raw bytes read from the transport so far.
func (r *Receiver) TotalBytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalBytes
}

// Available reports whether the receiver can take part in a new session.
func (r *Receiver) Available() bool {
	st := r.Status()
	return st == StatusValidated || st == StatusInProcess
}

func (r *Receiver) setStatus(st Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusDisconnected {
		r.status = st
	}
}

func (r *Receiver) setRoom(room int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = room
}

func (r *Receiver) setTurn(t TurnStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turn = t
}

func (r *Receiver) addWin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wins++
}

func (r *Receiver) addBytes(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalBytes += n
}

func (r *Receiver) bindIdentity(email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.email = email
	if r.status != StatusDisconnected {
		r.status = StatusValidated
	}
}

func (r *Receiver) gameProperties() messages.InGameProperties {
	r.mu.Lock()
	defer r.mu.Unlock()
	return messages.InGameProperties{
		Room: r.room,
		Wins: r.wins,
		Turn: r.turn.String(),
	}
}
