package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/net/websocket"

	"github.com/aliskhannn/realtime-notifier/internal/ledger"
	"github.com/aliskhannn/realtime-notifier/internal/metrics"
	"github.com/aliskhannn/realtime-notifier/internal/model"
	"github.com/aliskhannn/realtime-notifier/internal/presence"
	"github.com/aliskhannn/realtime-notifier/internal/repository/delivery"
)

type presenceRegistry interface {
	Register(userID uuid.UUID, conn presence.Conn)
	UnregisterIf(userID uuid.UUID, conn presence.Conn) bool
}

type tokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

type acknowledger interface {
	Acknowledge(
		ctx context.Context, recipientID, deliveryID uuid.UUID, status model.DeliveryStatus,
	) (model.Delivery, bool, error)
}

type flusher interface {
	FlushRecipient(ctx context.Context, recipientID uuid.UUID) (int, error)
}

// Options tunes the push channel.
type Options struct {
	HeartbeatInterval time.Duration
	MaxPayloadBytes   int
	WriteTimeout      time.Duration
}

// DefaultOptions returns a 30s heartbeat, a 1 MiB frame limit and a 10s write timeout.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: 30 * time.Second,
		MaxPayloadBytes:   1 << 20,
		WriteTimeout:      10 * time.Second,
	}
}

// Server accepts push channel connections and runs their sessions.
type Server struct {
	registry presenceRegistry
	verifier tokenVerifier
	ledger   acknowledger
	flusher  flusher
	metrics  *metrics.Metrics
	opts     Options

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

// NewServer creates the push channel server. m may be nil.
func NewServer(r presenceRegistry, v tokenVerifier, l acknowledger, f flusher, m *metrics.Metrics, opts Options) *Server {
	def := DefaultOptions()
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = def.HeartbeatInterval
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = def.MaxPayloadBytes
	}

	return &Server{
		registry: r,
		verifier: v,
		ledger:   l,
		flusher:  f,
		metrics:  m,
		opts:     opts,
		sessions: make(map[*Session]struct{}),
	}
}

// Handler returns the HTTP handler that upgrades requests to the push channel.
func (s *Server) Handler() http.Handler {
	return websocket.Server{
		// Clients are authenticated in-band, so the origin is not checked.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   s.serve,
	}
}

// Run checks session liveness every heartbeat interval until ctx is done.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Heartbeat()
		}
	}
}

// Heartbeat sends every open session a protocol ping. A session whose ping cannot
// be written is terminated and unregistered.
func (s *Server) Heartbeat() {
	for _, sess := range s.snapshot() {
		err := sess.ping()
		if err == nil || errors.Is(err, ErrSessionClosed) {
			continue
		}

		userID, _ := sess.UserID()
		zlog.Logger.Info().Err(err).Str("user_id", userID.String()).Msg("terminating unreachable session")

		sess.terminate("heartbeat")
		if userID != uuid.Nil {
			s.registry.UnregisterIf(userID, sess)
		}
	}
}

// Shutdown closes every open session and refuses new ones.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	sessions := s.snapshot()
	for _, sess := range sessions {
		_ = sess.Close(CloseGoingAway, "server shutting down")
	}

	zlog.Logger.Info().Int("sessions", len(sessions)).Msg("push channel stopped")
}

// Sessions returns the number of open sessions, authenticated or not.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

func (s *Server) snapshot() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		out = append(out, sess)
	}

	return out
}

func (s *Server) track(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.sessions[sess] = struct{}{}
	return true
}

func (s *Server) release(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()

	sess.terminate("client")

	if userID, ok := sess.UserID(); ok {
		s.registry.UnregisterIf(userID, sess)
		zlog.Logger.Info().Str("user_id", userID.String()).Str("reason", sess.closeReason()).Msg("session closed")
	}

	s.metrics.SessionClosed(sess.closeReason())
}

func (s *Server) serve(conn *websocket.Conn) {
	conn.MaxPayloadBytes = s.opts.MaxPayloadBytes
	sess := newSession(conn, s.opts.WriteTimeout)

	if !s.track(sess) {
		_ = sess.Close(CloseGoingAway, "server shutting down")
		s.metrics.SessionClosed(sess.closeReason())
		return
	}
	defer s.release(sess)

	ctx := conn.Request().Context()

	_ = sess.Send(model.OutEnvelope{
		Type:    model.MsgConnected,
		Payload: model.InfoPayload{Message: "connection established"},
	})

	for sess.IsOpen() {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			switch {
			case errors.Is(err, websocket.ErrFrameTooLarge):
				zlog.Logger.Warn().Int("limit", s.opts.MaxPayloadBytes).Msg("frame too large, closing session")
				_ = sess.Close(CloseMessageTooBig, "message too big")
			case errors.Is(err, io.EOF):
			default:
				if sess.IsOpen() {
					zlog.Logger.Warn().Err(err).Msg("failed to read frame")
				}
			}

			return
		}

		s.handle(ctx, sess, data)
	}
}

func (s *Server) handle(ctx context.Context, sess *Session, data []byte) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		s.sendError(sess, "invalid message format")
		return
	}

	switch env.Type {
	case model.MsgPing:
		_ = sess.Send(model.OutEnvelope{Type: model.MsgPong})
	case model.MsgPong:
	case model.MsgAuthenticate:
		s.authenticate(ctx, sess, env.Payload)
	case model.MsgRead:
		s.acknowledge(ctx, sess, env.Payload, model.DeliveryRead, model.MsgReadSuccess)
	case model.MsgDelivered:
		s.acknowledge(ctx, sess, env.Payload, model.DeliveryDelivered, model.MsgDeliveredSuccess)
	default:
		s.sendError(sess, "unknown message type: "+env.Type)
	}
}

func (s *Server) authenticate(ctx context.Context, sess *Session, payload json.RawMessage) {
	if _, ok := sess.UserID(); ok {
		s.sendError(sess, "already authenticated")
		return
	}

	var p model.AuthenticatePayload
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &p)
	}

	if p.Token == "" {
		s.rejectAuth(sess, "token is required")
		return
	}

	userID, err := s.verifier.Verify(p.Token)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("push channel authentication failed")
		s.rejectAuth(sess, "authentication failed")
		return
	}

	sess.authenticate(userID)
	s.registry.Register(userID, sess)

	zlog.Logger.Info().Str("user_id", userID.String()).Msg("session authenticated")

	_ = sess.Send(model.OutEnvelope{
		Type:    model.MsgAuthSuccess,
		Payload: model.AuthSuccessPayload{UserID: userID, Message: "authentication successful"},
	})

	if _, err := s.flusher.FlushRecipient(ctx, userID); err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to flush pending deliveries")
	}
}

func (s *Server) rejectAuth(sess *Session, msg string) {
	_ = sess.Send(model.OutEnvelope{Type: model.MsgAuthError, Payload: model.InfoPayload{Message: msg}})
	_ = sess.Close(ClosePolicyViolation, msg)
}

func (s *Server) acknowledge(
	ctx context.Context, sess *Session, payload json.RawMessage, status model.DeliveryStatus, reply string,
) {
	userID, ok := sess.UserID()
	if !ok {
		s.sendError(sess, "not authenticated")
		return
	}

	var p model.AckPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ID() == uuid.Nil {
		s.sendError(sess, "deliveryId is required")
		return
	}

	d, applied, err := s.ledger.Acknowledge(ctx, userID, p.ID(), status)
	if err != nil {
		switch {
		case errors.Is(err, delivery.ErrDeliveryNotFound), errors.Is(err, ledger.ErrNotRecipient):
			s.sendError(sess, "delivery not found")
		default:
			zlog.Logger.Error().Err(err).Str("delivery_id", p.ID().String()).Msg("failed to acknowledge delivery")
			s.sendError(sess, "failed to acknowledge delivery")
		}

		return
	}

	_ = sess.Send(model.OutEnvelope{
		Type:    reply,
		Payload: model.AckResultPayload{DeliveryID: d.ID, Status: d.Status, Applied: applied},
	})
}

func (s *Server) sendError(sess *Session, msg string) {
	_ = sess.Send(model.OutEnvelope{Type: model.MsgError, Payload: model.InfoPayload{Message: msg}})
}
