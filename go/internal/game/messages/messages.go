package messages

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/gridduel/go/internal/game/rules"
)

// Kind is the discriminant of a protocol message.
type Kind string

const (
	KindValidationRequest            Kind = "ValidationRequest"
	KindValidationResponse           Kind = "ValidationResponse"
	KindSessionRequest               Kind = "SessionRequest"
	KindSessionResponse              Kind = "SessionResponse"
	KindEndSessionRequest            Kind = "EndSessionRequest"
	KindEndSessionResponse           Kind = "EndSessionResponse"
	KindDisconnectRequest            Kind = "DisconnectRequest"
	KindCreateTableRequest           Kind = "CreateTableRequest"
	KindCreateTableResponse          Kind = "CreateTableResponse"
	KindTablesInProcessRequest       Kind = "TablesInProcessRequest"
	KindTablesInProcessResponse      Kind = "TablesInProcessResponse"
	KindUpdateTablesInProcessRequest Kind = "UpdateTablesInProcessRequest"
	KindAcceptPlayRequest            Kind = "AcceptPlayRequest"
	KindGameRequest                  Kind = "GameRequest"
	KindGameResponse                 Kind = "GameResponse"
	KindTimeOutRequest               Kind = "TimeOutRequest"
	KindUpdateCountDownRequest       Kind = "UpdateCountDownRequest"
	KindInitGame                     Kind = "InitGame"
)

// Envelope is the wire frame for every protocol message.
type Envelope struct {
	Kind         Kind            `json:"kind"`
	ID           string          `json:"id"`
	InResponseTo string          `json:"in_response_to,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// NewRequest wraps a payload in an envelope with a fresh correlation id.
func NewRequest(kind Kind, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return &Envelope{
		Kind:      kind,
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// NewResponse wraps a payload in an envelope correlated to the request it
// answers. A nil request produces an uncorrelated response.
func NewResponse(kind Kind, req *Envelope, payload interface{}) (*Envelope, error) {
	env, err := NewRequest(kind, payload)
	if err != nil {
		return nil, err
	}
	if req != nil {
		env.InResponseTo = req.ID
	}
	return env, nil
}

// Encode serializes an envelope for the transport.
func Encode(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s envelope: %w", env.Kind, err)
	}
	return data, nil
}

// Decode parses a raw frame into an envelope. A decode failure is a protocol
// error, not a transport error; callers treat it as recoverable.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("envelope is missing a kind discriminant")
	}
	return &env, nil
}

// ParsePayload decodes an envelope's data into the payload struct for its
// kind. Unknown kinds return (nil, nil) so they can be forwarded verbatim.
func ParsePayload(env *Envelope) (interface{}, error) {
	switch env.Kind {
	case KindValidationRequest:
		return unmarshal[ValidationRequest](env)
	case KindValidationResponse:
		return unmarshal[ValidationResponse](env)
	case KindSessionRequest:
		return unmarshal[SessionRequest](env)
	case KindSessionResponse:
		return unmarshal[SessionResponse](env)
	case KindEndSessionRequest:
		return unmarshal[EndSessionRequest](env)
	case KindEndSessionResponse:
		return unmarshal[EndSessionResponse](env)
	case KindDisconnectRequest:
		return unmarshal[DisconnectRequest](env)
	case KindCreateTableRequest:
		return unmarshal[CreateTableRequest](env)
	case KindCreateTableResponse:
		return unmarshal[CreateTableResponse](env)
	case KindTablesInProcessRequest:
		return unmarshal[TablesInProcessRequest](env)
	case KindTablesInProcessResponse:
		return unmarshal[TablesInProcessResponse](env)
	case KindUpdateTablesInProcessRequest:
		return unmarshal[UpdateTablesInProcessRequest](env)
	case KindAcceptPlayRequest:
		return unmarshal[AcceptPlayRequest](env)
	case KindGameRequest:
		return unmarshal[GameRequest](env)
	case KindGameResponse:
		return unmarshal[GameResponse](env)
	case KindTimeOutRequest:
		return unmarshal[TimeOutRequest](env)
	case KindUpdateCountDownRequest:
		return unmarshal[UpdateCountDownRequest](env)
	case KindInitGame:
		return unmarshal[InitGame](env)
	default:
		return nil, nil
	}
}

func unmarshal[T any](env *Envelope) (*T, error) {
	var payload T
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
	}
	return &payload, nil
}

// ResponseStatus carries business-rule failures on a response. Rejections are
// reported through these fields rather than a protocol-level fault frame.
type ResponseStatus struct {
	HasError bool   `json:"has_error,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Fail marks the response as a business-rule rejection.
func (s *ResponseStatus) Fail(description string) {
	s.HasError = true
	s.Error = description
}

// GameResult is the per-side outcome of a finished match.
type GameResult string

const (
	ResultWin  GameResult = "Win"
	ResultLose GameResult = "Lose"
	ResultTie  GameResult = "Tie"
)

// RoomNone is the sentinel for a connection with no assigned room.
const RoomNone = -1

// InGameProperties mirrors a connection's in-game state on the wire.
type InGameProperties struct {
	Room int    `json:"room"`
	Wins int    `json:"wins"`
	Turn string `json:"turn"`
}

// TableProperties is one lobby listing entry.
type TableProperties struct {
	Room        int    `json:"room"`
	Email       string `json:"email"`
	Description string `json:"description,omitempty"`
}

type ValidationRequest struct {
	Email string `json:"email"`
}

type ValidationResponse struct {
	ResponseStatus
	IsValid bool   `json:"is_valid"`
	Email   string `json:"email"`
}

// SessionRequest carries the target identity on the way in and is rewritten
// to the requester's identity before being forwarded to the target.
type SessionRequest struct {
	Email string `json:"email"`
}

// SessionResponse declares the target's decision. Email names the original
// requester on the way in and is rewritten to the responder's identity before
// the relay back.
type SessionResponse struct {
	ResponseStatus
	Email       string `json:"email"`
	IsConfirmed bool   `json:"is_confirmed"`
}

type EndSessionRequest struct{}

type EndSessionResponse struct {
	ResponseStatus
}

type DisconnectRequest struct{}

// CreateTableRequest creates a lobby room when IsCreate is set (TableNumber
// RoomNone requests auto-assignment) and releases the room otherwise.
type CreateTableRequest struct {
	IsCreate    bool `json:"is_create"`
	TableNumber int  `json:"table_number"`
}

type CreateTableResponse struct {
	ResponseStatus
	IsSuccess   bool `json:"is_success"`
	TableNumber int  `json:"table_number"`
}

type TablesInProcessRequest struct{}

type TablesInProcessResponse struct {
	ResponseStatus
	Tables []TableProperties `json:"tables"`
}

// UpdateTablesInProcessRequest is the push variant of the lobby listing,
// broadcast to idle clients whenever a room is created or released.
type UpdateTablesInProcessRequest struct {
	Tables []TableProperties `json:"tables"`
}

type AcceptPlayRequest struct {
	IsReady bool `json:"is_ready"`
}

type GameRequest struct {
	Board rules.Board `json:"board"`
}

type GameResponse struct {
	ResponseStatus
	Result GameResult  `json:"result"`
	Board  rules.Board `json:"board"`
}

type TimeOutRequest struct{}

type UpdateCountDownRequest struct {
	Time int `json:"time"`
}

// InitGame tells a side the match is starting: who it plays against and
// whether it moves first.
type InitGame struct {
	Opponent   string           `json:"opponent"`
	Properties InGameProperties `json:"properties"`
	IsFirst    bool             `json:"is_first"`
}
