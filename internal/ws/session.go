package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/aliskhannn/realtime-notifier/internal/presence"
)

// Close codes sent by the push channel.
const (
	CloseNormal          = 1000
	CloseGoingAway       = presence.CloseGoingAway
	ClosePolicyViolation = 1008
	CloseMessageTooBig   = 1009
	CloseReplaced        = presence.CloseReplaced
)

// ErrSessionClosed is returned when writing to a closed session.
var ErrSessionClosed = errors.New("session closed")

var pingPayload = []byte("heartbeat")

// Session is one open push channel. It implements presence.Conn.
type Session struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	wmu sync.Mutex // serializes frames so a recipient sees them in send order

	mu     sync.Mutex
	open   bool
	userID uuid.UUID
	reason string
}

func newSession(conn *websocket.Conn, writeTimeout time.Duration) *Session {
	return &Session{conn: conn, writeTimeout: writeTimeout, open: true}
}

// Send writes msg as a JSON text frame.
func (s *Session) Send(msg any) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if !s.IsOpen() {
		return ErrSessionClosed
	}

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}

	return websocket.JSON.Send(s.conn, msg)
}

// IsOpen reports whether the session can still be written to.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.open
}

// Close sends a close frame with code and shuts the connection. Later calls are no-ops.
func (s *Session) Close(code int, reason string) error {
	if !s.markClosed(closeLabel(code)) {
		return nil
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}

	_ = s.conn.WriteClose(code)

	return s.conn.Close()
}

// terminate drops the connection without waiting on pending writes.
func (s *Session) terminate(label string) {
	if !s.markClosed(label) {
		return
	}

	_ = s.conn.SetDeadline(time.Now())
	_ = s.conn.Close()
}

func (s *Session) markClosed(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return false
	}

	s.open = false
	s.reason = label

	return true
}

// UserID returns the authenticated recipient of the session.
func (s *Session) UserID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.userID, s.userID != uuid.Nil
}

func (s *Session) authenticate(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = id
}

func (s *Session) closeReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reason == "" {
		return "client"
	}

	return s.reason
}

// ping writes a protocol level ping frame. Client stacks answer it on their own,
// so the heartbeat asks nothing of the application. An error means the peer can no
// longer be written to within the write timeout.
func (s *Session) ping() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if !s.IsOpen() {
		return ErrSessionClosed
	}

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}

	// PayloadType is only read by Conn.Write, and every Write goes through wmu.
	s.conn.PayloadType = websocket.PingFrame
	defer func() { s.conn.PayloadType = websocket.TextFrame }()

	_, err := s.conn.Write(pingPayload)

	return err
}

func closeLabel(code int) string {
	switch code {
	case CloseGoingAway:
		return "shutdown"
	case ClosePolicyViolation:
		return "auth_failed"
	case CloseMessageTooBig:
		return "too_large"
	case CloseReplaced:
		return "replaced"
	default:
		return "server"
	}
}
