package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

// State is where a job currently sits in its lifecycle.
type State string

const (
	StateDelayed   State = "delayed"
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Outcome is what Finish decided for a job.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRetrying  Outcome = "retrying"
	OutcomeDead      Outcome = "dead"
)

// Payload is the application data carried by a job.
type Payload struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

// Job is a unit of work processed by a worker.
type Job struct {
	ID          string
	Payload     Payload
	State       State
	Attempts    int
	MaxAttempts int
	LastError   string
}

// Counts is the number of jobs in each state.
type Counts struct {
	Delayed   int `json:"delayed"`
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Transport hands a job that became due to the workers.
type Transport interface {
	Publish(ctx context.Context, jobID string, notificationID uuid.UUID) error
}

// Options tunes retries, retention and the scheduler.
type Options struct {
	Prefix        string
	MaxAttempts   int
	Backoff       time.Duration // base of the exponential backoff
	KeepCompleted int
	CompletedAge  time.Duration
	KeepFailed    int
	FailedAge     time.Duration
	PollInterval  time.Duration
	StalledAfter  time.Duration
	PromoteBatch  int64
}

// DefaultOptions mirrors the production queue policy.
func DefaultOptions() Options {
	return Options{
		Prefix:        "notifications",
		MaxAttempts:   3,
		Backoff:       9 * time.Second,
		KeepCompleted: 1000,
		CompletedAge:  24 * time.Hour,
		KeepFailed:    9000,
		FailedAge:     7 * 24 * time.Hour,
		PollInterval:  time.Second,
		StalledAfter:  time.Minute,
		PromoteBatch:  100,
	}
}

// Queue is a durable delayed job queue. Job state and schedule live in Redis; due
// jobs are handed to a Transport for the workers.
type Queue struct {
	rdb       *redis.Client
	transport Transport
	opts      Options
	now       func() time.Time
}

// New creates a Queue. Zero option fields take their default.
func New(rdb *redis.Client, transport Transport, opts Options) *Queue {
	def := DefaultOptions()
	if opts.Prefix == "" {
		opts.Prefix = def.Prefix
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	if opts.KeepCompleted <= 0 {
		opts.KeepCompleted = def.KeepCompleted
	}
	if opts.CompletedAge <= 0 {
		opts.CompletedAge = def.CompletedAge
	}
	if opts.KeepFailed <= 0 {
		opts.KeepFailed = def.KeepFailed
	}
	if opts.FailedAge <= 0 {
		opts.FailedAge = def.FailedAge
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.StalledAfter <= 0 {
		opts.StalledAfter = def.StalledAfter
	}
	if opts.PromoteBatch <= 0 {
		opts.PromoteBatch = def.PromoteBatch
	}

	return &Queue{rdb: rdb, transport: transport, opts: opts, now: time.Now}
}

func (q *Queue) jobKey(id string) string { return q.opts.Prefix + ":job:" + id }
func (q *Queue) stateKey(s State) string { return q.opts.Prefix + ":" + string(s) }
func (q *Queue) seqKey() string { return q.opts.Prefix + ":seq" }

func score(t time.Time) float64 { return float64(t.UnixMilli()) }

// Enqueue schedules a job for notificationID after delay and returns its id.
func (q *Queue) Enqueue(ctx context.Context, notificationID uuid.UUID, delay time.Duration) (string, error) {
	now := q.now()

	// The sequence keeps ids unique when enqueues share a millisecond.
	seq, err := q.rdb.Incr(ctx, q.seqKey()).Result()
	if err != nil {
		return "", fmt.Errorf("allocate job id: %w", err)
	}

	id := fmt.Sprintf("notification-%s-%d-%d", notificationID, now.UnixMilli(), seq)
	runAt := now.Add(delay)

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.jobKey(id), map[string]interface{}{
			"notification_id": notificationID.String(),
			"state":           string(StateDelayed),
			"attempts":        0,
			"max_attempts":    q.opts.MaxAttempts,
			"created_at":      now.UnixMilli(),
			"run_at":          runAt.UnixMilli(),
		})
		pipe.ZAdd(ctx, q.stateKey(StateDelayed), &redis.Z{Score: score(runAt), Member: id})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	if delay <= 0 {
		if _, err := q.promote(ctx, id, notificationID); err != nil {
			zlog.Logger.Warn().Err(err).Str("job_id", id).Msg("immediate promotion failed, scheduler will retry")
		}
	}

	return id, nil
}

// Remove cancels a job that has not started yet. It is a no-op for unknown,
// running or finished jobs.
func (q *Queue) Remove(ctx context.Context, jobID string) error {
	if jobID == "" {
		return nil
	}

	removed, err := q.rdb.ZRem(ctx, q.stateKey(StateDelayed), jobID).Result()
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}

	if removed > 0 {
		if err := q.rdb.Del(ctx, q.jobKey(jobID)).Err(); err != nil {
			return fmt.Errorf("delete job: %w", err)
		}

		return nil
	}

	state, err := q.rdb.HGet(ctx, q.jobKey(jobID), "state").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read job state: %w", err)
	}

	// Already handed to the transport: leave a tombstone so Begin skips it.
	if State(state) == StateWaiting {
		if err := q.rdb.HSet(ctx, q.jobKey(jobID), "removed", 1).Err(); err != nil {
			return fmt.Errorf("tombstone job: %w", err)
		}
	}

	return nil
}

// Begin claims a job delivered by the transport. It returns false when the job was
// removed, is unknown, or was already claimed by another worker.
func (q *Queue) Begin(ctx context.Context, jobID string) (Job, bool, error) {
	claimed, err := q.rdb.ZRem(ctx, q.stateKey(StateWaiting), jobID).Result()
	if err != nil {
		return Job{}, false, fmt.Errorf("claim job: %w", err)
	}

	if claimed == 0 {
		return Job{}, false, nil
	}

	fields, err := q.rdb.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return Job{}, false, fmt.Errorf("load job: %w", err)
	}

	if len(fields) == 0 {
		return Job{}, false, nil
	}

	if fields["removed"] == "1" {
		if err := q.rdb.Del(ctx, q.jobKey(jobID)).Err(); err != nil {
			return Job{}, false, fmt.Errorf("delete removed job: %w", err)
		}

		return Job{}, false, nil
	}

	job, err := decodeJob(jobID, fields)
	if err != nil {
		return Job{}, false, err
	}

	now := q.now()
	var attempts *redis.IntCmd
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		attempts = pipe.HIncrBy(ctx, q.jobKey(jobID), "attempts", 1)
		pipe.HSet(ctx, q.jobKey(jobID), "state", string(StateActive), "started_at", now.UnixMilli())
		pipe.ZAdd(ctx, q.stateKey(StateActive), &redis.Z{Score: score(now), Member: jobID})
		return nil
	})
	if err != nil {
		return Job{}, false, fmt.Errorf("activate job: %w", err)
	}

	job.Attempts = int(attempts.Val())
	job.State = StateActive

	return job, true, nil
}

// Finish records the result of an attempt. A nil jobErr completes the job; a
// permanent error or an exhausted attempt budget fails it; anything else
// reschedules it with exponential backoff.
func (q *Queue) Finish(ctx context.Context, job Job, jobErr error) (Outcome, error) {
	now := q.now()
	key := q.jobKey(job.ID)

	if jobErr == nil {
		_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, q.stateKey(StateActive), job.ID)
			pipe.ZAdd(ctx, q.stateKey(StateCompleted), &redis.Z{Score: score(now), Member: job.ID})
			pipe.HSet(ctx, key, "state", string(StateCompleted), "finished_at", now.UnixMilli())
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("complete job: %w", err)
		}

		return OutcomeCompleted, nil
	}

	if IsPermanent(jobErr) || job.Attempts >= job.MaxAttempts {
		_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, q.stateKey(StateActive), job.ID)
			pipe.ZAdd(ctx, q.stateKey(StateFailed), &redis.Z{Score: score(now), Member: job.ID})
			pipe.HSet(ctx, key, "state", string(StateFailed), "finished_at", now.UnixMilli(), "last_error", jobErr.Error())
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("fail job: %w", err)
		}

		return OutcomeDead, nil
	}

	runAt := now.Add(q.backoff(job.Attempts))
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.stateKey(StateActive), job.ID)
		pipe.ZAdd(ctx, q.stateKey(StateDelayed), &redis.Z{Score: score(runAt), Member: job.ID})
		pipe.HSet(ctx, key, "state", string(StateDelayed), "run_at", runAt.UnixMilli(), "last_error", jobErr.Error())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reschedule job: %w", err)
	}

	return OutcomeRetrying, nil
}

// backoff returns base * 2^(attempts-1).
func (q *Queue) backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	return q.opts.Backoff << (attempts - 1)
}

// Counts returns the number of jobs per state. When filter is set only jobs whose
// payload satisfies it are counted.
func (q *Queue) Counts(ctx context.Context, filter func(Payload) bool) (Counts, error) {
	var c Counts
	targets := []struct {
		state State
		dst   *int
	}{
		{StateDelayed, &c.Delayed},
		{StateWaiting, &c.Waiting},
		{StateActive, &c.Active},
		{StateCompleted, &c.Completed},
		{StateFailed, &c.Failed},
	}

	for _, t := range targets {
		if filter == nil {
			n, err := q.rdb.ZCard(ctx, q.stateKey(t.state)).Result()
			if err != nil {
				return Counts{}, fmt.Errorf("count %s jobs: %w", t.state, err)
			}

			*t.dst = int(n)
			continue
		}

		ids, err := q.rdb.ZRange(ctx, q.stateKey(t.state), 0, -1).Result()
		if err != nil {
			return Counts{}, fmt.Errorf("list %s jobs: %w", t.state, err)
		}

		for _, id := range ids {
			raw, err := q.rdb.HGet(ctx, q.jobKey(id), "notification_id").Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return Counts{}, fmt.Errorf("read job payload: %w", err)
			}

			nid, err := uuid.Parse(raw)
			if err != nil {
				continue
			}

			if filter(Payload{NotificationID: nid}) {
				*t.dst++
			}
		}
	}

	return c, nil
}

// Get returns a job by id.
func (q *Queue) Get(ctx context.Context, jobID string) (Job, error) {
	fields, err := q.rdb.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return Job{}, fmt.Errorf("load job: %w", err)
	}

	if len(fields) == 0 {
		return Job{}, ErrJobNotFound
	}

	return decodeJob(jobID, fields)
}

// ErrJobNotFound is returned by Get for unknown jobs.
var ErrJobNotFound = errors.New("job not found")

func decodeJob(id string, fields map[string]string) (Job, error) {
	nid, err := uuid.Parse(fields["notification_id"])
	if err != nil {
		return Job{}, fmt.Errorf("decode job %s: %w", id, err)
	}

	attempts, _ := strconv.Atoi(fields["attempts"])
	maxAttempts, _ := strconv.Atoi(fields["max_attempts"])

	return Job{
		ID:          id,
		Payload:     Payload{NotificationID: nid},
		State:       State(fields["state"]),
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		LastError:   fields["last_error"],
	}, nil
}
