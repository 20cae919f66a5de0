package presenter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the transport needs.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WebSocketTransport carries JSON messages over a websocket connection.
type WebSocketTransport struct {
	conn    Conn
	writeMu sync.Mutex
	inbox   chan inbound
	once    sync.Once
	done    chan struct{}
}

type inbound struct {
	msg Message
	err error
}

var _ Transport = (*WebSocketTransport)(nil)

// NewWebSocketTransport starts reading from conn.
func NewWebSocketTransport(conn Conn) *WebSocketTransport {
	t := &WebSocketTransport{
		conn:  conn,
		inbox: make(chan inbound, pipeBuffer),
		done:  make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *WebSocketTransport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, websocket.ErrCloseSent) {
				err = ErrClosed
			}
			t.deliver(inbound{err: err})
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.deliver(inbound{err: fmt.Errorf("%w: %v", ErrMalformedMessage, err)})
			continue
		}
		t.deliver(inbound{msg: msg})
	}
}

func (t *WebSocketTransport) deliver(in inbound) {
	select {
	case t.inbox <- in:
	case <-t.done:
	}
}

func (t *WebSocketTransport) Send(_ context.Context, msg Message) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("presenter: encode %s: %w", msg.Type, err)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("presenter: write %s: %w", msg.Type, err)
	}
	return nil
}

func (t *WebSocketTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case in := <-t.inbox:
		return in.msg, in.err
	case <-t.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (t *WebSocketTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		t.writeMu.Lock()
		_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}
