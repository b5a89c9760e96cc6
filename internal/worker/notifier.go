package worker

import (
	"context"
	"sync"
	"time"

	"github.com/wb-go/wbf/zlog"
	"golang.org/x/time/rate"

	"github.com/aliskhannn/realtime-notifier/internal/jobqueue"
	"github.com/aliskhannn/realtime-notifier/internal/metrics"
	"github.com/aliskhannn/realtime-notifier/internal/rabbitmq/queue"
)

//go:generate mockgen -source=notifier.go -destination=../mocks/worker/mock.go -package=mocks
type jobSource interface {
	Consume(ctx context.Context, out chan<- queue.JobMessage) error
}

type jobTracker interface {
	Begin(ctx context.Context, jobID string) (jobqueue.Job, bool, error)
	Finish(ctx context.Context, job jobqueue.Job, jobErr error) (jobqueue.Outcome, error)
}

type jobHandler interface {
	HandleJob(ctx context.Context, job jobqueue.Job) error
	HandleDead(ctx context.Context, job jobqueue.Job, cause error)
}

// Options sizes the pool.
type Options struct {
	Count      int           // number of worker goroutines
	RateMax    int           // jobs allowed per RateWindow across the pool
	RateWindow time.Duration
}

// Notifier is the pool of queue workers.
type Notifier struct {
	source  jobSource
	jobs    jobTracker
	handler jobHandler
	limiter *rate.Limiter
	metrics *metrics.Metrics
	count   int
}

// NewNotifier creates the pool. m may be nil.
func NewNotifier(s jobSource, j jobTracker, h jobHandler, m *metrics.Metrics, opts Options) *Notifier {
	if opts.Count <= 0 {
		opts.Count = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateMax > 0 && opts.RateWindow > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.RateWindow/time.Duration(opts.RateMax)), opts.RateMax)
	}

	return &Notifier{
		source:  s,
		jobs:    j,
		handler: h,
		limiter: limiter,
		metrics: m,
		count:   opts.Count,
	}
}

// Run consumes ready jobs until ctx is done and waits for the workers to drain.
func (n *Notifier) Run(ctx context.Context) {
	var wg sync.WaitGroup
	msgChan := make(chan queue.JobMessage, n.count*10)

	go func() {
		if err := n.source.Consume(ctx, msgChan); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to consume messages")
		}
	}()

	wg.Add(n.count)
	for i := 0; i < n.count; i++ {
		go func(id int) {
			defer wg.Done()

			zlog.Logger.Info().Int("worker", id).Msg("worker started")

			for {
				select {
				case <-ctx.Done():
					zlog.Logger.Info().Int("worker", id).Msg("worker shutting down")
					return
				case msg, ok := <-msgChan:
					if !ok {
						zlog.Logger.Info().Int("worker", id).Msg("channel closed, worker shutting down")
						return
					}

					n.process(ctx, msg)
				}
			}
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	zlog.Logger.Info().Msg("notifier stopped")
}

func (n *Notifier) process(ctx context.Context, msg queue.JobMessage) {
	if err := n.limiter.Wait(ctx); err != nil {
		return
	}

	job, ok, err := n.jobs.Begin(ctx, msg.JobID)
	if err != nil {
		// The scheduler republishes jobs left waiting.
		zlog.Logger.Error().Err(err).Str("job_id", msg.JobID).Msg("failed to begin job")
		n.metrics.Job("error")
		return
	}

	if !ok {
		zlog.Logger.Info().Str("job_id", msg.JobID).Msg("job removed or already claimed, skipping")
		n.metrics.Job("skipped")
		return
	}

	jobErr := n.handler.HandleJob(ctx, job)

	outcome, err := n.jobs.Finish(ctx, job, jobErr)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to finish job")
		n.metrics.Job("error")
		return
	}

	n.metrics.Job(string(outcome))

	if outcome == jobqueue.OutcomeDead {
		n.handler.HandleDead(ctx, job, jobErr)
	}
}
