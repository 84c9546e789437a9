package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Conn is a websocket connection bound to one trip session.
type Conn struct {
	conn      *websocket.Conn
	sessionID string
	doneCtx   context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ctx context.Context, sessionID string, conn *websocket.Conn) *Conn {
	ctx, cancel := context.WithCancel(ctx)

	return &Conn{
		conn:      conn,
		sessionID: sessionID,
		doneCtx:   ctx,
		cancel:    cancel,
	}
}

// SessionID returns the session the connection is subscribed to.
func (c *Conn) SessionID() string {
	return c.sessionID
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.doneCtx.Done()
}

// Send writes one JSON message.
func (c *Conn) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.doneCtx.Done():
		return errors.New("send failed: connection closed")
	default:
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return c.conn.WriteJSON(msg)
}

// Listen reads JSON messages until the connection fails or is closed.
func (c *Conn) Listen(handler func(msg map[string]any) error) error {
	for {
		select {
		case <-c.doneCtx.Done():
			return errors.New("listen stopped: context done")
		default:
		}

		var msg map[string]any
		if err := c.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		if err := handler(msg); err != nil {
			return fmt.Errorf("handler failed: %w", err)
		}
	}
}

// Close closes the connection. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.doneCtx.Done():
		return nil
	default:
	}
	c.cancel()
	return c.conn.Close()
}
