package session

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gridduel/go/internal/game/messages"
)

type handlerFunc func(*Receiver, *messages.Envelope)

// handlers is the dispatch table from message kind to handler. Kinds not
// listed here fall through to peer forwarding in dispatch.
var handlers = map[messages.Kind]handlerFunc{
	messages.KindValidationRequest:      (*Receiver).handleValidationRequest,
	messages.KindSessionRequest:         (*Receiver).handleSessionRequest,
	messages.KindSessionResponse:        (*Receiver).handleSessionResponse,
	messages.KindEndSessionRequest:      (*Receiver).handleEndSessionRequest,
	messages.KindDisconnectRequest:      (*Receiver).handleDisconnectRequest,
	messages.KindCreateTableRequest:     (*Receiver).handleCreateTableRequest,
	messages.KindTablesInProcessRequest: (*Receiver).handleTablesInProcessRequest,
	messages.KindAcceptPlayRequest:      (*Receiver).handleAcceptPlayRequest,
	messages.KindGameRequest:            (*Receiver).handleGameRequest,
}

// decodePayload unmarshals an envelope's payload, logging and swallowing
// malformed data. Bad payloads are protocol errors, not transport errors.
func decodePayload[T any](r *Receiver, env *messages.Envelope) (*T, bool) {
	var payload T
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		log.Warn().Err(err).
			Str("receiver_id", r.id.String()).
			Str("kind", string(env.Kind)).
			Msg("dropping message with malformed payload")
		return nil, false
	}
	return &payload, true
}

func (r *Receiver) sendResponse(kind messages.Kind, req *messages.Envelope, payload interface{}) {
	env, err := messages.NewResponse(kind, req, payload)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("failed to build response")
		return
	}
	r.Send(env)
}

func (r *Receiver) sendRequest(kind messages.Kind, payload interface{}) {
	env, err := messages.NewRequest(kind, payload)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("failed to build request")
		return
	}
	r.Send(env)
}

func (r *Receiver) handleValidationRequest(env *messages.Envelope) {
	req, ok := decodePayload[messages.ValidationRequest](r, env)
	if !ok {
		return
	}

	resp := messages.ValidationResponse{Email: req.Email}

	if other := r.registry.FindByEmail(req.Email, r); other != nil {
		resp.Fail(fmt.Sprintf("identity %s is already connected", req.Email))
		r.sendResponse(messages.KindValidationResponse, env, resp)
		return
	}

	if err := r.registry.auth.Authenticate(req.Email); err != nil {
		resp.Fail(fmt.Sprintf("login failed for user %s: %v", req.Email, err))
		r.sendResponse(messages.KindValidationResponse, env, resp)
		return
	}

	r.bindIdentity(req.Email)
	resp.IsValid = true
	r.sendResponse(messages.KindValidationResponse, env, resp)
	r.registry.notifyValidated(r)

	log.Info().
		Str("receiver_id", r.id.String()).
		Str("email", req.Email).
		Msg("client validated")
}

func (r *Receiver) handleSessionRequest(env *messages.Envelope) {
	req, ok := decodePayload[messages.SessionRequest](r, env)
	if !ok {
		return
	}

	if !r.Available() {
		var resp messages.SessionResponse
		resp.Fail("could not request a new session: the current client is already in session, or is not logged in")
		r.sendResponse(messages.KindSessionResponse, env, resp)
		return
	}

	target := r.registry.FindAvailable(req.Email, r)
	if target == nil {
		var resp messages.SessionResponse
		resp.Fail(fmt.Sprintf("%s does not exist, is not logged in, or is in session with another user", req.Email))
		r.sendResponse(messages.KindSessionResponse, env, resp)
		return
	}

	// Substitute the requester's identity so the target knows who is asking.
	// The envelope id is preserved for correlation.
	data, err := json.Marshal(messages.SessionRequest{Email: r.Email()})
	if err != nil {
		log.Error().Err(err).Msg("failed to rewrite session request")
		return
	}
	fwd := *env
	fwd.Data = data
	target.Send(&fwd)
}

func (r *Receiver) handleSessionResponse(env *messages.Envelope) {
	resp, ok := decodePayload[messages.SessionResponse](r, env)
	if !ok {
		return
	}

	requester := r.registry.FindByEmail(resp.Email, r)
	if requester == nil {
		log.Warn().
			Str("receiver_id", r.id.String()).
			Str("target", resp.Email).
			Msg("session response targets an unknown identity")
		return
	}

	out := *resp
	out.Email = r.Email()

	if !resp.IsConfirmed {
		out.Fail("the session request was refused by " + r.Email())
		r.forwardSessionResponse(env, requester, out)
		return
	}

	if err := r.registry.Pair(r, requester); err != nil {
		// The requester paired with someone else (or dropped out of the
		// lobby) before this confirmation arrived. Both parties hear about
		// the failure so neither is left waiting on a session that never
		// formed.
		out.IsConfirmed = false
		out.Fail(fmt.Sprintf("the session could not be established: %v", err))
		r.forwardSessionResponse(env, requester, out)

		own := messages.SessionResponse{Email: requester.Email()}
		own.Fail(fmt.Sprintf("the session could not be established: %v", err))
		r.sendResponse(messages.KindSessionResponse, env, own)
		return
	}

	room := r.resolveRoom(requester)
	r.setRoom(room)
	requester.setRoom(room)

	r.forwardSessionResponse(env, requester, out)

	// Kick off the ready handshake on both sides.
	r.sendRequest(messages.KindAcceptPlayRequest, messages.AcceptPlayRequest{})
	requester.sendRequest(messages.KindAcceptPlayRequest, messages.AcceptPlayRequest{})

	log.Info().
		Str("requester", requester.Email()).
		Str("responder", r.Email()).
		Int("room", room).
		Msg("session established")
}

func (r *Receiver) forwardSessionResponse(env *messages.Envelope, requester *Receiver, out messages.SessionResponse) {
	data, err := json.Marshal(out)
	if err != nil {
		log.Error().Err(err).Msg("failed to rewrite session response")
		return
	}
	fwd := *env
	fwd.Data = data
	requester.Send(&fwd)
}

// resolveRoom picks the room for a new session: reuse whichever side already
// holds a number no other active receiver occupies, preferring the
// responder's, otherwise allocate fresh. The occupancy check keeps two
// concurrent sessions from ever sharing a room.
func (r *Receiver) resolveRoom(requester *Receiver) int {
	if room := r.Room(); room != messages.RoomNone && !r.registry.RoomInUse(room, r, requester) {
		return room
	}
	if room := requester.Room(); room != messages.RoomNone && !r.registry.RoomInUse(room, r, requester) {
		return room
	}
	return r.registry.AllocateRoom()
}

func (r *Receiver) handleEndSessionRequest(env *messages.Envelope) {
	peer := r.Peer()
	if peer == nil {
		var resp messages.EndSessionResponse
		resp.Fail("no active session to end")
		r.sendResponse(messages.KindEndSessionResponse, env, resp)
		return
	}

	r.countdown.Stop()
	r.countdown.Reset()
	peer.countdown.Stop()
	peer.countdown.Reset()
	r.setTurn(TurnNotReady)
	peer.setTurn(TurnNotReady)

	peer.sendRequest(messages.KindEndSessionRequest, messages.EndSessionRequest{})

	r.registry.Unpair(r)
	r.setStatus(StatusValidated)
	r.sendResponse(messages.KindEndSessionResponse, env, messages.EndSessionResponse{})
}

func (r *Receiver) handleDisconnectRequest(env *messages.Envelope) {
	if peer := r.Peer(); peer != nil {
		peer.sendRequest(messages.KindDisconnectRequest, messages.DisconnectRequest{})
	}
	r.Disconnect()
}

func (r *Receiver) handleCreateTableRequest(env *messages.Envelope) {
	req, ok := decodePayload[messages.CreateTableRequest](r, env)
	if !ok {
		return
	}

	var resp messages.CreateTableResponse

	// Table changes are a lobby operation. A receiver that is mid-session
	// must end it first; letting it flip status here would strand its peer.
	if !r.Available() {
		resp.Fail("cannot create or release a table while in session, or before logging in")
		r.sendResponse(messages.KindCreateTableResponse, env, resp)
		return
	}

	if !req.IsCreate {
		r.setStatus(StatusValidated)
		r.setRoom(messages.RoomNone)
		resp.IsSuccess = true
		resp.TableNumber = messages.RoomNone
	} else if req.TableNumber != messages.RoomNone {
		if r.registry.RoomInUse(req.TableNumber, r) {
			resp.Fail(fmt.Sprintf("table %d is already taken", req.TableNumber))
		} else {
			r.setRoom(req.TableNumber)
			r.setStatus(StatusInProcess)
			resp.IsSuccess = true
			resp.TableNumber = req.TableNumber
		}
	} else {
		room := r.registry.AllocateRoom()
		r.setRoom(room)
		r.setStatus(StatusInProcess)
		resp.IsSuccess = true
		resp.TableNumber = room
	}

	r.sendResponse(messages.KindCreateTableResponse, env, resp)
	if resp.IsSuccess {
		r.registry.BroadcastLobby(r)
	}
}

func (r *Receiver) handleTablesInProcessRequest(env *messages.Envelope) {
	resp := messages.TablesInProcessResponse{
		Tables: r.registry.TablesInProcess(r),
	}
	r.sendResponse(messages.KindTablesInProcessResponse, env, resp)
}
