package presenter

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by a Transport after either side closed it.
	ErrClosed = errors.New("presenter: transport closed")
	// ErrMalformedMessage reports a frame that could not be decoded. The
	// transport stays usable.
	ErrMalformedMessage = errors.New("presenter: malformed message")
)

// Transport moves messages between the two windows. Send and Receive may
// be called concurrently; delivery is in order.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}

const pipeBuffer = 64

// Pipe returns two connected in-process transports.
func Pipe() (Transport, Transport) {
	a := make(chan Message, pipeBuffer)
	b := make(chan Message, pipeBuffer)
	shared := &pipeState{done: make(chan struct{})}
	return &pipeEnd{in: a, out: b, state: shared}, &pipeEnd{in: b, out: a, state: shared}
}

type pipeState struct {
	once sync.Once
	done chan struct{}
}

type pipeEnd struct {
	in    <-chan Message
	out   chan<- Message
	state *pipeState
}

func (p *pipeEnd) Send(ctx context.Context, msg Message) error {
	select {
	case <-p.state.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.state.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.state.done:
		// messages sent before Close are still delivered
		select {
		case msg := <-p.in:
			return msg, nil
		default:
			return Message{}, ErrClosed
		}
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.state.once.Do(func() { close(p.state.done) })
	return nil
}
