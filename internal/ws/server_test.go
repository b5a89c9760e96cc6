package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/aliskhannn/realtime-notifier/internal/dispatch"
	"github.com/aliskhannn/realtime-notifier/internal/ledger"
	"github.com/aliskhannn/realtime-notifier/internal/metrics"
	"github.com/aliskhannn/realtime-notifier/internal/model"
	"github.com/aliskhannn/realtime-notifier/internal/presence"
	"github.com/aliskhannn/realtime-notifier/internal/testutil"
)

type tokens struct {
	mu  sync.Mutex
	ids map[string]uuid.UUID
}

func (t *tokens) Verify(token string) (uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.ids[token]
	if !ok {
		return uuid.Nil, errors.New("token is malformed")
	}

	return id, nil
}

type fixture struct {
	srv        *Server
	http       *httptest.Server
	registry   *presence.Registry
	ledger     *ledger.Ledger
	deliveries *testutil.DeliveryStore
	metrics    *metrics.Metrics
	tokens     *tokens
}

func setup(t *testing.T, opts Options) *fixture {
	t.Helper()

	registry := presence.NewRegistry(nil)
	deliveries := testutil.NewDeliveryStore()
	l := ledger.New(deliveries)
	engine := dispatch.New(registry, l, testutil.NewDirectory(), nil, dispatch.Options{})
	m := metrics.New(prometheus.NewRegistry())
	tk := &tokens{ids: make(map[string]uuid.UUID)}

	srv := NewServer(registry, tk, l, engine, m, opts)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	return &fixture{
		srv:        srv,
		http:       hs,
		registry:   registry,
		ledger:     l,
		deliveries: deliveries,
		metrics:    m,
		tokens:     tk,
	}
}

// user issues a token for a fresh user id.
func (f *fixture) user() (uuid.UUID, string) {
	id := uuid.New()
	token := "token-" + id.String()

	f.tokens.mu.Lock()
	f.tokens.ids[token] = id
	f.tokens.mu.Unlock()

	return id, token
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(f.http.URL, "http"), "", f.http.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// connect dials and consumes the connected greeting.
func (f *fixture) connect(t *testing.T) *websocket.Conn {
	t.Helper()

	conn := f.dial(t)
	assert.Equal(t, model.MsgConnected, readFrame(t, conn).Type)

	return conn
}

// login connects and authenticates as a fresh user. It returns once the
// reconnect flush has run, so later frames are not interleaved with it.
func (f *fixture) login(t *testing.T) (*websocket.Conn, uuid.UUID) {
	t.Helper()

	id, token := f.user()
	conn := f.connect(t)
	writeFrame(t, conn, model.MsgAuthenticate, model.AuthenticatePayload{Token: token})
	require.Equal(t, model.MsgAuthSuccess, readFrame(t, conn).Type)

	writeFrame(t, conn, model.MsgPing, nil)
	require.Equal(t, model.MsgPong, readFrame(t, conn).Type)

	return conn, id
}

func writeFrame(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	require.NoError(t, websocket.JSON.Send(conn, model.OutEnvelope{Type: typ, Payload: payload}))
}

func readFrame(t *testing.T, conn *websocket.Conn) model.Envelope {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var env model.Envelope
	require.NoError(t, websocket.JSON.Receive(conn, &env))

	return env
}

func readClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var env model.Envelope
	assert.Error(t, websocket.JSON.Receive(conn, &env), "expected the channel to be closed")
}

func errorMessage(t *testing.T, env model.Envelope) string {
	t.Helper()
	require.Equal(t, model.MsgError, env.Type)

	var p model.InfoPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))

	return p.Message
}

func TestSession_AuthenticateRegistersRecipient(t *testing.T) {
	f := setup(t, Options{})
	id, token := f.user()

	conn := f.connect(t)
	writeFrame(t, conn, model.MsgAuthenticate, model.AuthenticatePayload{Token: token})

	env := readFrame(t, conn)
	require.Equal(t, model.MsgAuthSuccess, env.Type)

	var p model.AuthSuccessPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, id, p.UserID)
	assert.True(t, f.registry.IsOnline(id))

	n := model.Notification{ID: uuid.New(), Kind: model.KindSingle, Title: "hello", Recipient: id}
	require.True(t, f.registry.Push(id, model.NewNotificationMessage(uuid.New(), n)))
	assert.Equal(t, model.MsgNew, readFrame(t, conn).Type)
}

func TestSession_AuthFailureClosesChannel(t *testing.T) {
	tests := []struct {
		name    string
		payload any
	}{
		{name: "missing token", payload: model.AuthenticatePayload{}},
		{name: "no payload", payload: nil},
		{name: "invalid token", payload: model.AuthenticatePayload{Token: "forged"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, Options{})
			conn := f.connect(t)

			writeFrame(t, conn, model.MsgAuthenticate, tt.payload)

			assert.Equal(t, model.MsgAuthError, readFrame(t, conn).Type)
			readClosed(t, conn)

			assert.Eventually(t, func() bool {
				return promtest.ToFloat64(f.metrics.Sessions.WithLabelValues("auth_failed")) == 1
			}, time.Second, 10*time.Millisecond)
			assert.Equal(t, 0, f.registry.Count())
		})
	}
}

func TestSession_UnauthenticatedCommands(t *testing.T) {
	f := setup(t, Options{})
	conn := f.connect(t)

	writeFrame(t, conn, model.MsgPing, nil)
	assert.Equal(t, model.MsgPong, readFrame(t, conn).Type)

	writeFrame(t, conn, model.MsgRead, model.AckPayload{DeliveryID: uuid.New()})
	assert.Equal(t, "not authenticated", errorMessage(t, readFrame(t, conn)))

	writeFrame(t, conn, model.MsgDelivered, model.AckPayload{DeliveryID: uuid.New()})
	assert.Equal(t, "not authenticated", errorMessage(t, readFrame(t, conn)))

	writeFrame(t, conn, "notification:unsubscribe", nil)
	assert.Equal(t, "unknown message type: notification:unsubscribe", errorMessage(t, readFrame(t, conn)))

	require.NoError(t, websocket.Message.Send(conn, "{not json"))
	assert.Equal(t, "invalid message format", errorMessage(t, readFrame(t, conn)))

	// The channel survives all of the above.
	writeFrame(t, conn, model.MsgPing, nil)
	assert.Equal(t, model.MsgPong, readFrame(t, conn).Type)
	assert.Equal(t, 0, f.registry.Count())
}

func TestSession_FlushesOwedDeliveriesOnAuthenticate(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	id, token := f.user()

	var owed []uuid.UUID
	for i := 0; i < 3; i++ {
		d, err := f.ledger.GetOrCreate(ctx, uuid.New(), id)
		require.NoError(t, err)
		if i > 0 {
			_, err = f.ledger.MarkSent(ctx, d.ID)
			require.NoError(t, err)
		}
		owed = append(owed, d.ID)
	}

	conn := f.connect(t)
	writeFrame(t, conn, model.MsgAuthenticate, model.AuthenticatePayload{Token: token})
	require.Equal(t, model.MsgAuthSuccess, readFrame(t, conn).Type)

	var got []uuid.UUID
	for i := 0; i < 3; i++ {
		env := readFrame(t, conn)
		require.Equal(t, model.MsgNew, env.Type)

		var p model.NotificationPayload
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		got = append(got, p.DeliveryID)
	}

	// Most recent first.
	assert.Equal(t, []uuid.UUID{owed[2], owed[1], owed[0]}, got)

	assert.Eventually(t, func() bool {
		for _, did := range owed {
			d, err := f.deliveries.GetByID(ctx, did)
			if err != nil || d.Status != model.DeliveryDelivered {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestSession_Acknowledgements(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	conn, id := f.login(t)

	d, err := f.ledger.GetOrCreate(ctx, uuid.New(), id)
	require.NoError(t, err)

	writeFrame(t, conn, model.MsgRead, model.AckPayload{DeliveryID: d.ID})
	env := readFrame(t, conn)
	require.Equal(t, model.MsgReadSuccess, env.Type)

	var res model.AckResultPayload
	require.NoError(t, json.Unmarshal(env.Payload, &res))
	assert.Equal(t, model.AckResultPayload{DeliveryID: d.ID, Status: model.DeliveryRead, Applied: true}, res)

	// A delivered ack after read is a backward move and is not applied.
	writeFrame(t, conn, model.MsgDelivered, model.AckPayload{NotificationDeliveryID: d.ID})
	env = readFrame(t, conn)
	require.Equal(t, model.MsgDeliveredSuccess, env.Type)
	require.NoError(t, json.Unmarshal(env.Payload, &res))
	assert.False(t, res.Applied)
	assert.Equal(t, model.DeliveryRead, res.Status)

	stored, err := f.deliveries.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryRead, stored.Status)
}

func TestSession_AcknowledgeRejectsForeignAndMissingDeliveries(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	conn, _ := f.login(t)

	foreign, err := f.ledger.GetOrCreate(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)

	writeFrame(t, conn, model.MsgRead, model.AckPayload{DeliveryID: foreign.ID})
	assert.Equal(t, "delivery not found", errorMessage(t, readFrame(t, conn)))

	writeFrame(t, conn, model.MsgRead, model.AckPayload{DeliveryID: uuid.New()})
	assert.Equal(t, "delivery not found", errorMessage(t, readFrame(t, conn)))

	writeFrame(t, conn, model.MsgDelivered, map[string]string{"deliveryId": "nope"})
	assert.Equal(t, "deliveryId is required", errorMessage(t, readFrame(t, conn)))

	stored, err := f.deliveries.GetByID(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryPending, stored.Status)
}

func TestSession_ReauthenticateIsRejected(t *testing.T) {
	f := setup(t, Options{})
	conn, id := f.login(t)
	_, other := f.user()

	writeFrame(t, conn, model.MsgAuthenticate, model.AuthenticatePayload{Token: other})
	assert.Equal(t, "already authenticated", errorMessage(t, readFrame(t, conn)))
	assert.True(t, f.registry.IsOnline(id))
	assert.Equal(t, 1, f.registry.Count())
}

func TestSession_ReplacedSessionDoesNotUnregisterNewer(t *testing.T) {
	f := setup(t, Options{})
	id, token := f.user()

	first := f.connect(t)
	writeFrame(t, first, model.MsgAuthenticate, model.AuthenticatePayload{Token: token})
	require.Equal(t, model.MsgAuthSuccess, readFrame(t, first).Type)

	second := f.connect(t)
	writeFrame(t, second, model.MsgAuthenticate, model.AuthenticatePayload{Token: token})
	require.Equal(t, model.MsgAuthSuccess, readFrame(t, second).Type)

	readClosed(t, first)

	assert.Eventually(t, func() bool {
		return promtest.ToFloat64(f.metrics.Sessions.WithLabelValues("replaced")) == 1
	}, time.Second, 10*time.Millisecond)

	assert.True(t, f.registry.IsOnline(id))

	n := model.Notification{ID: uuid.New(), Kind: model.KindSingle, Recipient: id}
	require.True(t, f.registry.Push(id, model.NewNotificationMessage(uuid.New(), n)))
	assert.Equal(t, model.MsgNew, readFrame(t, second).Type)
}

func TestHeartbeat_IdleSessionStaysOnline(t *testing.T) {
	f := setup(t, Options{})
	conn, id := f.login(t)

	// The client sends nothing between heartbeats. Its websocket stack answers
	// the ping frames while it reads.
	for i := 0; i < 3; i++ {
		f.srv.Heartbeat()
	}

	assert.True(t, f.registry.IsOnline(id))
	assert.Equal(t, 1, f.srv.Sessions())

	writeFrame(t, conn, model.MsgPing, nil)
	assert.Equal(t, model.MsgPong, readFrame(t, conn).Type, "ping frames never surface as messages")
	assert.True(t, f.registry.IsOnline(id))
}

func TestHeartbeat_TerminatesUnreachableSessions(t *testing.T) {
	f := setup(t, Options{})
	conn, id := f.login(t)

	sessions := f.srv.snapshot()
	require.Len(t, sessions, 1)

	// Without a write timeout the ping keeps this deadline, so its write fails
	// the way it does for a peer that stopped reading.
	require.NoError(t, sessions[0].conn.SetWriteDeadline(time.Now().Add(-time.Second)))

	f.srv.Heartbeat()

	assert.False(t, f.registry.IsOnline(id))
	readClosed(t, conn)

	assert.Eventually(t, func() bool {
		return f.srv.Sessions() == 0 &&
			promtest.ToFloat64(f.metrics.Sessions.WithLabelValues("heartbeat")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSession_OversizedFrameClosesChannel(t *testing.T) {
	f := setup(t, Options{MaxPayloadBytes: 64})
	conn := f.connect(t)

	writeFrame(t, conn, model.MsgAuthenticate, model.AuthenticatePayload{Token: strings.Repeat("x", 256)})
	readClosed(t, conn)

	assert.Eventually(t, func() bool {
		return promtest.ToFloat64(f.metrics.Sessions.WithLabelValues("too_large")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestServer_Shutdown(t *testing.T) {
	f := setup(t, Options{})
	anonymous := f.connect(t)
	authed, _ := f.login(t)

	f.srv.Shutdown()

	readClosed(t, anonymous)
	readClosed(t, authed)

	late := f.dial(t)
	readClosed(t, late)

	assert.Eventually(t, func() bool {
		return f.srv.Sessions() == 0
	}, time.Second, 10*time.Millisecond)
}
