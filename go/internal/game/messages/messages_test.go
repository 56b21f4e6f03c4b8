package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCorrelation(t *testing.T) {
	req, err := NewRequest(KindSessionRequest, SessionRequest{Email: "a@b.c"})
	require.NoError(t, err)
	require.NotEmpty(t, req.ID)

	resp, err := NewResponse(KindSessionResponse, req, SessionResponse{IsConfirmed: true})
	require.NoError(t, err)
	assert.Equal(t, req.ID, resp.InResponseTo)
	assert.NotEqual(t, req.ID, resp.ID)
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"id":"x"}`))
	assert.Error(t, err, "missing kind must be rejected")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req, err := NewRequest(KindAcceptPlayRequest, AcceptPlayRequest{IsReady: true})
	require.NoError(t, err)

	raw, err := Encode(req)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, req.Kind, decoded.Kind)
	assert.Equal(t, req.ID, decoded.ID)

	payload, err := ParsePayload(decoded)
	require.NoError(t, err)
	assert.True(t, payload.(*AcceptPlayRequest).IsReady)
}

func TestParsePayloadUnknownKind(t *testing.T) {
	env := &Envelope{Kind: Kind("ChatMessage"), ID: "1"}
	payload, err := ParsePayload(env)
	assert.NoError(t, err)
	assert.Nil(t, payload, "unknown kinds pass through untouched")
}

func TestFailMarksResponse(t *testing.T) {
	var resp SessionResponse
	resp.Fail("target is busy")
	assert.True(t, resp.HasError)
	assert.Equal(t, "target is busy", resp.Error)
}
