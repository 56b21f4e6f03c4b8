package session

import (
	"bytes"
	"encoding/json"
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gridduel/go/internal/game/messages"
	"github.com/mcdev12/gridduel/go/internal/game/rules"
)

// handleAcceptPlayRequest runs the ready handshake. The message is always
// relayed to the paired side; a readiness declaration moves the sender to
// ready, and once both sides are ready the match is initialized.
func (r *Receiver) handleAcceptPlayRequest(env *messages.Envelope) {
	req, ok := decodePayload[messages.AcceptPlayRequest](r, env)
	if !ok {
		return
	}

	peer := r.Peer()
	if peer == nil {
		log.Warn().
			Str("receiver_id", r.id.String()).
			Msg("accept-play from unpaired receiver")
		return
	}

	peer.Send(env)

	if !req.IsReady {
		return
	}

	r.setTurn(TurnReady)
	if first, ok := r.tryBeginMatch(peer); ok {
		r.initMatch(peer, first)
	}
}

// tryBeginMatch claims match initialization when both sides are ready. Both
// receivers' locks are taken in id order so exactly one of two racing ready
// signals performs the coin flip; the first mover is marked in-turn inside
// the critical section, which makes the second caller's check fail.
func (r *Receiver) tryBeginMatch(peer *Receiver) (first, ok bool) {
	x, y := r, peer
	if bytes.Compare(x.id[:], y.id[:]) > 0 {
		x, y = y, x
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	y.mu.Lock()
	defer y.mu.Unlock()

	if r.turn != TurnReady || peer.turn != TurnReady {
		return false, false
	}
	first = rand.Intn(2) == 0
	if first {
		r.turn = TurnInTurn
	} else {
		peer.turn = TurnInTurn
	}
	return first, true
}

// initMatch starts a claimed match: each side learns its opponent and
// whether it leads, and both countdowns start. The losing side of the coin
// flip stays ready, waiting on the first mover.
func (r *Receiver) initMatch(peer *Receiver, first bool) {
	r.sendRequest(messages.KindInitGame, messages.InitGame{
		Opponent:   peer.Email(),
		Properties: peer.gameProperties(),
		IsFirst:    first,
	})
	peer.sendRequest(messages.KindInitGame, messages.InitGame{
		Opponent:   r.Email(),
		Properties: r.gameProperties(),
		IsFirst:    !first,
	})

	r.countdown.Reset()
	peer.countdown.Reset()
	r.countdown.Start()
	peer.countdown.Start()

	log.Info().
		Str("side_a", r.Email()).
		Str("side_b", peer.Email()).
		Int("room", r.Room()).
		Bool("a_moves_first", first).
		Msg("match initialized")
}

// handleGameRequest processes a turn submission: the move cancels the pending
// timeout on both clocks, the board is reoriented and relayed to the
// opponent, and a terminal outcome ends the match with results and a fresh
// ready prompt.
func (r *Receiver) handleGameRequest(env *messages.Envelope) {
	req, ok := decodePayload[messages.GameRequest](r, env)
	if !ok {
		return
	}

	peer := r.Peer()
	if peer == nil {
		log.Warn().
			Str("receiver_id", r.id.String()).
			Msg("turn submission from unpaired receiver")
		return
	}

	outcome := rules.Evaluate(req.Board)

	// The act of moving cancels the pending timeout on both sides.
	r.countdown.Reset()
	peer.countdown.Reset()

	swapped := rules.Swap(req.Board)
	data, err := json.Marshal(messages.GameRequest{Board: swapped})
	if err != nil {
		log.Error().Err(err).Msg("failed to rewrite turn submission")
		return
	}
	fwd := *env
	fwd.Data = data
	peer.Send(&fwd)

	if outcome == rules.InPlay {
		return
	}

	r.countdown.Stop()
	r.countdown.Reset()
	peer.countdown.Stop()
	peer.countdown.Reset()
	r.setTurn(TurnNotReady)
	peer.setTurn(TurnNotReady)

	mine, theirs := messages.ResultTie, messages.ResultTie
	if outcome == rules.Win {
		mine, theirs = messages.ResultWin, messages.ResultLose
	}

	r.sendResponse(messages.KindGameResponse, env,
		messages.GameResponse{Result: mine, Board: req.Board})
	peer.sendResponse(messages.KindGameResponse, env,
		messages.GameResponse{Result: theirs, Board: swapped})

	// Prompt both sides to line up another match.
	r.sendRequest(messages.KindAcceptPlayRequest, messages.AcceptPlayRequest{})
	peer.sendRequest(messages.KindAcceptPlayRequest, messages.AcceptPlayRequest{})

	log.Info().
		Str("submitter", r.Email()).
		Str("outcome", outcome.String()).
		Int("room", r.Room()).
		Msg("match finished")
}

// onCountdownTick pushes the live countdown value to the client.
func (r *Receiver) onCountdownTick(remaining int) {
	r.sendRequest(messages.KindUpdateCountDownRequest,
		messages.UpdateCountDownRequest{Time: remaining})
}

// onCountdownExpire resolves a timed-out turn for the owning side. A side
// caught in turn never produced its move and loses; a side caught ready was
// waiting on the opponent and is credited the win.
func (r *Receiver) onCountdownExpire() {
	r.countdown.Stop()
	r.countdown.Reset()

	switch r.Turn() {
	case TurnInTurn:
		r.setTurn(TurnNotReady)
		r.sendRequest(messages.KindTimeOutRequest, messages.TimeOutRequest{})
		r.sendRequest(messages.KindGameResponse,
			messages.GameResponse{Result: messages.ResultLose})
	case TurnReady:
		r.addWin()
		r.setTurn(TurnNotReady)
		r.sendRequest(messages.KindTimeOutRequest, messages.TimeOutRequest{})
		r.sendRequest(messages.KindGameResponse,
			messages.GameResponse{Result: messages.ResultWin})
	default:
		// No turn pending for this side.
		return
	}

	r.sendRequest(messages.KindAcceptPlayRequest, messages.AcceptPlayRequest{})

	log.Info().
		Str("receiver_id", r.id.String()).
		Str("email", r.Email()).
		Msg("turn timed out")
}
