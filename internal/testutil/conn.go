package testutil

import (
	"errors"
	"sync"
)

// Conn is an in-memory push channel.
type Conn struct {
	mu        sync.Mutex
	open      bool
	failing   bool
	sent      []any
	CloseCode int
}

func NewConn() *Conn {
	return &Conn{open: true}
}

func (c *Conn) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return errors.New("connection closed")
	}

	if c.failing {
		return errors.New("write: broken pipe")
	}

	c.sent = append(c.sent, msg)
	return nil
}

func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.open
}

func (c *Conn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.open = false
	c.CloseCode = code

	return nil
}

// SetFailing makes every later Send fail while the channel still reports open.
func (c *Conn) SetFailing(failing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failing = failing
}

// Sent returns the messages transmitted so far.
func (c *Conn) Sent() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]any(nil), c.sent...)
}
