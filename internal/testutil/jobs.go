package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/realtime-notifier/internal/jobqueue"
)

// EnqueuedJob is a job recorded by Jobs.
type EnqueuedJob struct {
	ID             string
	NotificationID uuid.UUID
	Delay          time.Duration
	Removed        bool
}

// Jobs records enqueued jobs instead of scheduling them.
type Jobs struct {
	mu   sync.Mutex
	jobs []*EnqueuedJob
	seq  int

	FailEnqueue bool
}

func NewJobs() *Jobs {
	return &Jobs{}
}

func (j *Jobs) Enqueue(_ context.Context, notificationID uuid.UUID, delay time.Duration) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.FailEnqueue {
		return "", errors.New("queue unavailable")
	}

	j.seq++
	job := &EnqueuedJob{
		ID:             fmt.Sprintf("notification-%s-%d", notificationID, j.seq),
		NotificationID: notificationID,
		Delay:          delay,
	}
	j.jobs = append(j.jobs, job)

	return job.ID, nil
}

func (j *Jobs) Remove(_ context.Context, jobID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, job := range j.jobs {
		if job.ID == jobID {
			job.Removed = true
		}
	}

	return nil
}

func (j *Jobs) Counts(_ context.Context, filter func(jobqueue.Payload) bool) (jobqueue.Counts, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var c jobqueue.Counts
	for _, job := range j.jobs {
		if job.Removed {
			continue
		}

		if filter != nil && !filter(jobqueue.Payload{NotificationID: job.NotificationID}) {
			continue
		}

		if job.Delay > 0 {
			c.Delayed++
		} else {
			c.Waiting++
		}
	}

	return c, nil
}

// Active returns the jobs that were not removed.
func (j *Jobs) Active() []EnqueuedJob {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []EnqueuedJob
	for _, job := range j.jobs {
		if !job.Removed {
			out = append(out, *job)
		}
	}

	return out
}

// All returns every recorded job.
func (j *Jobs) All() []EnqueuedJob {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]EnqueuedJob, 0, len(j.jobs))
	for _, job := range j.jobs {
		out = append(out, *job)
	}

	return out
}
