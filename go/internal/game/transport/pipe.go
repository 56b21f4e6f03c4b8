package transport

import (
	"io"
	"net"
	"sync"
)

const pipeBuffer = 64

// Pipe is an in-memory Transport used by tests and by anything that needs to
// drive a connection actor without a network. Closing either end fails both
// ends, mirroring a dropped socket.
type Pipe struct {
	read  chan []byte
	write chan []byte
	done  chan struct{}
	once  *sync.Once
}

// NewPipe returns two connected transports: frames written on one end are
// read on the other.
func NewPipe() (*Pipe, *Pipe) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	done := make(chan struct{})
	once := &sync.Once{}

	a := &Pipe{read: ba, write: ab, done: done, once: once}
	b := &Pipe{read: ab, write: ba, done: done, once: once}
	return a, b
}

func (p *Pipe) WriteMessage(data []byte) error {
	frame := make([]byte, len(data))
	copy(frame, data)
	select {
	case <-p.done:
		return net.ErrClosed
	case p.write <- frame:
		return nil
	}
}

func (p *Pipe) ReadMessage() ([]byte, error) {
	select {
	case <-p.done:
		return nil, io.EOF
	case data := <-p.read:
		return data, nil
	}
}

func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
