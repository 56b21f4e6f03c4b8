package transport

// Transport is an opaque bidirectional message channel carrying whole frames.
// The framing and serialization behind it are out of the session layer's
// hands: the connection actor only sees complete raw messages.
type Transport interface {
	// WriteMessage sends one frame. Any error is a transport failure and is
	// fatal for the connection.
	WriteMessage(data []byte) error
	// ReadMessage blocks until a full frame is available. Any error is a
	// transport failure and is fatal for the connection.
	ReadMessage() ([]byte, error)
	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}
