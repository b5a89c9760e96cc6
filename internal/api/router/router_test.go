package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/aliskhannn/realtime-notifier/internal/api/handlers/notification"
	"github.com/aliskhannn/realtime-notifier/internal/metrics"
	mocks "github.com/aliskhannn/realtime-notifier/internal/mocks/api/handlers/notification"
)

type staticVerifier struct {
	token string
	id    uuid.UUID
}

func (v staticVerifier) Verify(token string) (uuid.UUID, error) {
	if strings.TrimPrefix(token, "Bearer ") != v.token {
		return uuid.Nil, errors.New("invalid token")
	}

	return v.id, nil
}

func TestRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPresence := mocks.NewMockpresenceChecker(ctrl)
	handler := notification.NewHandler(mocks.NewMocknotificationService(ctrl), mockPresence, validator.New())

	reg := prometheus.NewRegistry()
	metrics.New(reg).SetOnline(2)

	push := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	e := New(handler, staticVerifier{token: "secret", id: uuid.New()}, push, reg)

	other := uuid.New()
	mockPresence.EXPECT().IsOnline(other).Return(false)

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
		body   string
	}{
		{name: "health", path: "/health", status: http.StatusOK},
		{name: "metrics", path: "/metrics", status: http.StatusOK, body: "notifier_presence_online 2"},
		{name: "push channel", path: "/ws", status: http.StatusTeapot},
		{name: "api without token", path: "/api/v1/presence/" + other.String(), status: http.StatusUnauthorized},
		{name: "api with bad token", path: "/api/v1/presence/" + other.String(), auth: "Bearer nope", status: http.StatusUnauthorized},
		{name: "api with token", path: "/api/v1/presence/" + other.String(), auth: "Bearer secret", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}

			w := httptest.NewRecorder()
			e.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Contains(t, w.Body.String(), tt.body)
			}
		})
	}
}
