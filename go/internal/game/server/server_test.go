package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gridduel/go/internal/game/messages"
	"github.com/mcdev12/gridduel/go/internal/game/session"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = 0
	s := New(cfg, nil, nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s/ws", s.Addr())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStartRejectsDoubleStart(t *testing.T) {
	s := startTestServer(t)
	assert.Error(t, s.Start())
}

func TestWebSocketValidationRoundTrip(t *testing.T) {
	s := startTestServer(t)
	conn := dial(t, s)

	req, err := messages.NewRequest(messages.KindValidationRequest,
		messages.ValidationRequest{Email: "alice@test.io"})
	require.NoError(t, err)
	data, err := messages.Encode(req)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	env, err := messages.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, messages.KindValidationResponse, env.Kind)
	assert.Equal(t, req.ID, env.InResponseTo)

	var resp messages.ValidationResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.IsValid)
}

func TestStatsEndpoint(t *testing.T) {
	s := startTestServer(t)
	dial(t, s)

	require.Eventually(t, func() bool { return s.Registry().Count() == 1 },
		10*time.Second, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/stats", s.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats session.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalConnections)
	require.Len(t, stats.Connections, 1)
	assert.Equal(t, "connected", stats.Connections[0].Status)
}

func TestStopDisconnectsReceivers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0
	s := New(cfg, nil, nil)
	require.NoError(t, s.Start())

	conn := dial(t, s)
	require.Eventually(t, func() bool { return s.Registry().Count() == 1 },
		10*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.Equal(t, 0, s.Registry().Count())

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "client connection is closed after stop")
}
