package presence

import (
	"sync"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

// Close codes used when the registry closes a connection on its own.
const (
	CloseGoingAway = 1001 // server shutting down
	CloseReplaced  = 4001 // displaced by a newer session of the same user
)

// Conn is a live push channel as seen by the registry.
//
//go:generate mockgen -source=registry.go -destination=../mocks/presence/mock.go -package=mocks
type Conn interface {
	Send(msg any) error
	IsOpen() bool
	Close(code int, reason string) error
}

// Registry tracks the single active push channel of every connected user.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]Conn
	closed bool

	onChange func(online int)
}

// NewRegistry creates an empty registry. onChange, when set, observes the online count.
// It runs under the registry lock so counts are published in mutation order, and it
// must not call back into the registry.
func NewRegistry(onChange func(online int)) *Registry {
	return &Registry{
		conns:    make(map[uuid.UUID]Conn),
		onChange: onChange,
	}
}

// Register stores conn as the active channel of userID, closing the previous one.
func (r *Registry) Register(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = conn.Close(CloseGoingAway, "server shutting down")
		return
	}

	old := r.conns[userID]
	r.conns[userID] = conn
	r.notify()
	r.mu.Unlock()

	if old != nil && old != conn {
		zlog.Logger.Info().Str("user_id", userID.String()).Msg("replacing existing session")
		if err := old.Close(CloseReplaced, "replaced by a newer connection"); err != nil {
			zlog.Logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to close replaced session")
		}
	}
}

// Unregister drops the channel of userID. It is a no-op for unknown users.
func (r *Registry) Unregister(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[userID]; !ok {
		return
	}

	delete(r.conns, userID)
	r.notify()
}

// UnregisterIf drops the channel of userID only if it is still conn.
func (r *Registry) UnregisterIf(userID uuid.UUID, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current != conn {
		return false
	}

	delete(r.conns, userID)
	r.notify()

	return true
}

// IsOnline reports whether userID has a registered channel that is open right now.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	conn := r.get(userID)
	return conn != nil && conn.IsOpen()
}

// Push sends msg to the live channel of userID and reports whether it was transmitted.
func (r *Registry) Push(userID uuid.UUID, msg any) (ok bool) {
	conn := r.get(userID)
	if conn == nil || !conn.IsOpen() {
		return false
	}

	defer func() {
		if p := recover(); p != nil {
			zlog.Logger.Error().Interface("panic", p).Str("user_id", userID.String()).Msg("push panicked")
			ok = false
		}
	}()

	if err := conn.Send(msg); err != nil {
		zlog.Logger.Warn().Err(err).Str("user_id", userID.String()).Msg("push failed")
		return false
	}

	return true
}

// ListOnline returns the users that currently have a registered channel.
func (r *Registry) ListOnline() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}

	return ids
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

// Shutdown closes every registered channel and rejects later registrations.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	conns := r.conns
	r.conns = make(map[uuid.UUID]Conn)
	r.notify()
	r.mu.Unlock()

	for id, conn := range conns {
		if err := conn.Close(CloseGoingAway, "server shutting down"); err != nil {
			zlog.Logger.Warn().Err(err).Str("user_id", id.String()).Msg("failed to close session on shutdown")
		}
	}

	zlog.Logger.Info().Int("sessions", len(conns)).Msg("presence registry stopped")
}

func (r *Registry) get(userID uuid.UUID) Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.conns[userID]
}

// notify publishes the online count. Callers hold r.mu.
func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange(len(r.conns))
	}
}
