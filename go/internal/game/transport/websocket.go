package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WS adapts a gorilla WebSocket connection to the Transport interface.
// gorilla connections permit one concurrent writer, so writes are serialized
// here rather than in the caller.
type WS struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWS wraps an upgraded WebSocket connection. writeTimeout bounds each
// frame write; zero disables the deadline.
func NewWS(conn *websocket.Conn, writeTimeout time.Duration) *WS {
	return &WS{conn: conn, writeTimeout: writeTimeout}
}

func (w *WS) WriteMessage(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if w.writeTimeout > 0 {
		w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WS) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *WS) Close() error {
	w.closeOnce.Do(func() {
		w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}
