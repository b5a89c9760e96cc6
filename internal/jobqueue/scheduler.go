package jobqueue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

// Run promotes due jobs, recovers stalled ones and trims history until ctx is done.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	zlog.Logger.Info().Dur("interval", q.opts.PollInterval).Msg("job scheduler started")

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("job scheduler stopped")
			return
		case <-ticker.C:
			if _, err := q.PromoteDue(ctx); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to promote due jobs")
			}

			if _, err := q.RecoverStalled(ctx); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to recover stalled jobs")
			}

			if err := q.Trim(ctx); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to trim job history")
			}
		}
	}
}

// PromoteDue hands every delayed job whose time has come to the transport.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	now := q.now()

	ids, err := q.rdb.ZRangeByScore(ctx, q.stateKey(StateDelayed), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: q.opts.PromoteBatch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list due jobs: %w", err)
	}

	promoted := 0
	for _, id := range ids {
		raw, err := q.rdb.HGet(ctx, q.jobKey(id), "notification_id").Result()
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("job_id", id).Msg("dropping job without payload")
			q.rdb.ZRem(ctx, q.stateKey(StateDelayed), id)
			continue
		}

		nid, err := uuid.Parse(raw)
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("job_id", id).Msg("dropping job with malformed payload")
			q.rdb.ZRem(ctx, q.stateKey(StateDelayed), id)
			continue
		}

		ok, err := q.promote(ctx, id, nid)
		if err != nil {
			return promoted, err
		}

		if ok {
			promoted++
		}
	}

	return promoted, nil
}

// promote moves one delayed job to waiting and publishes it. Removal from the
// delayed set is the claim, so concurrent promoters and Remove never both win.
func (q *Queue) promote(ctx context.Context, id string, notificationID uuid.UUID) (bool, error) {
	claimed, err := q.rdb.ZRem(ctx, q.stateKey(StateDelayed), id).Result()
	if err != nil {
		return false, fmt.Errorf("claim delayed job: %w", err)
	}

	if claimed == 0 {
		return false, nil
	}

	now := q.now()
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, q.stateKey(StateWaiting), &redis.Z{Score: score(now), Member: id})
		pipe.HSet(ctx, q.jobKey(id), "state", string(StateWaiting), "promoted_at", now.UnixMilli())
		return nil
	})
	if err != nil {
		q.rdb.ZAdd(ctx, q.stateKey(StateDelayed), &redis.Z{Score: score(now), Member: id})
		return false, fmt.Errorf("mark job waiting: %w", err)
	}

	if err := q.transport.Publish(ctx, id, notificationID); err != nil {
		retryAt := now.Add(q.opts.PollInterval)
		_, rbErr := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, q.stateKey(StateWaiting), id)
			pipe.ZAdd(ctx, q.stateKey(StateDelayed), &redis.Z{Score: score(retryAt), Member: id})
			pipe.HSet(ctx, q.jobKey(id), "state", string(StateDelayed))
			return nil
		})
		if rbErr != nil {
			zlog.Logger.Error().Err(rbErr).Str("job_id", id).Msg("failed to return job to delayed set")
		}

		return false, fmt.Errorf("publish job: %w", err)
	}

	return true, nil
}

// RecoverStalled reschedules active jobs whose worker disappeared and republishes
// waiting jobs whose transport message was lost.
func (q *Queue) RecoverStalled(ctx context.Context) (int, error) {
	now := q.now()
	cutoff := strconv.FormatInt(now.Add(-q.opts.StalledAfter).UnixMilli(), 10)
	recovered := 0

	active, err := q.rdb.ZRangeByScore(ctx, q.stateKey(StateActive), &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return 0, fmt.Errorf("list stalled jobs: %w", err)
	}

	for _, id := range active {
		claimed, err := q.rdb.ZRem(ctx, q.stateKey(StateActive), id).Result()
		if err != nil {
			return recovered, fmt.Errorf("claim stalled job: %w", err)
		}

		if claimed == 0 {
			continue
		}

		_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, q.stateKey(StateDelayed), &redis.Z{Score: score(now), Member: id})
			pipe.HSet(ctx, q.jobKey(id), "state", string(StateDelayed))
			return nil
		})
		if err != nil {
			return recovered, fmt.Errorf("reschedule stalled job: %w", err)
		}

		zlog.Logger.Warn().Str("job_id", id).Msg("recovered stalled job")
		recovered++
	}

	waiting, err := q.rdb.ZRangeByScore(ctx, q.stateKey(StateWaiting), &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return recovered, fmt.Errorf("list lost jobs: %w", err)
	}

	for _, id := range waiting {
		raw, err := q.rdb.HGet(ctx, q.jobKey(id), "notification_id").Result()
		if err != nil {
			continue
		}

		nid, err := uuid.Parse(raw)
		if err != nil {
			continue
		}

		if err := q.transport.Publish(ctx, id, nid); err != nil {
			return recovered, fmt.Errorf("republish job: %w", err)
		}

		q.rdb.ZAdd(ctx, q.stateKey(StateWaiting), &redis.Z{Score: score(now), Member: id})
		recovered++
	}

	return recovered, nil
}

// Trim applies the retention policy to completed and failed jobs.
func (q *Queue) Trim(ctx context.Context) error {
	if err := q.trim(ctx, StateCompleted, q.opts.KeepCompleted, q.opts.CompletedAge); err != nil {
		return err
	}

	return q.trim(ctx, StateFailed, q.opts.KeepFailed, q.opts.FailedAge)
}

func (q *Queue) trim(ctx context.Context, state State, keep int, age time.Duration) error {
	set := q.stateKey(state)
	cutoff := strconv.FormatInt(q.now().Add(-age).UnixMilli(), 10)

	expired, err := q.rdb.ZRangeByScore(ctx, set, &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return fmt.Errorf("list expired %s jobs: %w", state, err)
	}

	if err := q.drop(ctx, set, expired); err != nil {
		return err
	}

	total, err := q.rdb.ZCard(ctx, set).Result()
	if err != nil {
		return fmt.Errorf("count %s jobs: %w", state, err)
	}

	if total <= int64(keep) {
		return nil
	}

	oldest, err := q.rdb.ZRange(ctx, set, 0, total-int64(keep)-1).Result()
	if err != nil {
		return fmt.Errorf("list oldest %s jobs: %w", state, err)
	}

	return q.drop(ctx, set, oldest)
}

func (q *Queue) drop(ctx context.Context, set string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, 0, len(ids))
	members := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, q.jobKey(id))
		members = append(members, id)
	}

	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, set, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("drop jobs: %w", err)
	}

	return nil
}
