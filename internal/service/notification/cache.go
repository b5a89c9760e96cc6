package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/realtime-notifier/internal/model"
)

//go:generate mockgen -source=cache.go -destination=../../mocks/service/notification/mock.go -package=mocks
type cache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

func statusKey(id uuid.UUID) string {
	return "notification:status:" + id.String()
}

// GetStatus returns the current status of a notification, served from the cache when possible.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (model.Status, error) {
	status, err := s.cache.GetWithRetry(ctx, s.strategy, statusKey(id))
	if err == nil {
		return model.Status(status), nil
	}

	if !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status from cache")
	}

	n, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get notification status: %w", err)
	}

	s.cacheStatus(ctx, id, n.Status)

	return n.Status, nil
}

func (s *Service) cacheStatus(ctx context.Context, id uuid.UUID, status model.Status) {
	if err := s.cache.SetWithRetry(ctx, s.strategy, statusKey(id), string(status)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}
}
