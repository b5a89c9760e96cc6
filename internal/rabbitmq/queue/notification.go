package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const (
	ExchangeName   = "notify-exchange"
	MainQueueName  = "notify-queue"
	DLQName        = "notify-dlq"
	RoutingKey     = "notify"
	DeadRoutingKey = "notify.dead"
)

// JobMessage announces that a queue job is ready to run.
type JobMessage struct {
	JobID          string    `json:"job_id"`
	NotificationID uuid.UUID `json:"notification_id"`
}

// DeadLetter is what lands in the DLQ once a job is out of attempts.
type DeadLetter struct {
	JobID          string    `json:"job_id"`
	NotificationID uuid.UUID `json:"notification_id"`
	Attempts       int       `json:"attempts"`
	Reason         string    `json:"reason"`
	FailedAt       time.Time `json:"failed_at"`
}

// NotificationQueue carries ready jobs from the scheduler to the workers.
type NotificationQueue struct {
	Publisher *rabbitmq.Publisher
	Consumer  *rabbitmq.Consumer
	strategy  retry.Strategy
}

func NewNotificationQueue(ch *rabbitmq.Channel, strategy retry.Strategy) (*NotificationQueue, error) {
	exchange := rabbitmq.NewExchange(ExchangeName, "direct")
	if err := exchange.BindToChannel(ch); err != nil {
		return nil, fmt.Errorf("failed to bind to exchange: %w", err)
	}

	qm := rabbitmq.NewQueueManager(ch)

	dlq, err := qm.DeclareQueue(DLQName, rabbitmq.QueueConfig{Durable: true})
	if err != nil {
		return nil, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	mainArgs := map[string]interface{}{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DLQName,
	}

	mainQ, err := qm.DeclareQueue(MainQueueName, rabbitmq.QueueConfig{
		Durable: true,
		Args:    mainArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare main queue: %w", err)
	}

	if err := ch.QueueBind(mainQ.Name, RoutingKey, exchange.Name(), false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind the exchange to the main queue: %w", err)
	}

	if err := ch.QueueBind(dlq.Name, DeadRoutingKey, exchange.Name(), false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind the exchange to the DLQ: %w", err)
	}

	pub := rabbitmq.NewPublisher(ch, exchange.Name())
	cons := rabbitmq.NewConsumer(ch, rabbitmq.NewConsumerConfig(mainQ.Name))

	return &NotificationQueue{Publisher: pub, Consumer: cons, strategy: strategy}, nil
}

// Publish announces a ready job. It is the transport of the job queue.
func (q *NotificationQueue) Publish(ctx context.Context, jobID string, notificationID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(JobMessage{JobID: jobID, NotificationID: notificationID})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.Publisher.PublishWithRetry(body, RoutingKey, "application/json", q.strategy)
}

// PublishDead parks a job that ran out of attempts in the DLQ.
func (q *NotificationQueue) PublishDead(ctx context.Context, msg DeadLetter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	return q.Publisher.PublishWithRetry(body, DeadRoutingKey, "application/json", q.strategy)
}

// Consume forwards ready jobs to out until ctx is done. It blocks.
func (q *NotificationQueue) Consume(ctx context.Context, out chan<- JobMessage) error {
	msgChan := make(chan []byte)

	go Forward(ctx, msgChan, out)

	return q.Consumer.ConsumeWithRetry(msgChan, q.strategy)
}

// Forward decodes raw deliveries into job messages, dropping the malformed ones.
func Forward(ctx context.Context, in <-chan []byte, out chan<- JobMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}

			var msg JobMessage
			if err := json.Unmarshal(m, &msg); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to unmarshal message")
				continue
			}

			if msg.JobID == "" {
				zlog.Logger.Warn().Msg("message without job id dropped")
				continue
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}
