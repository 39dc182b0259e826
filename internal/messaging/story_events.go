package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"taleweaver/internal/model"
	"taleweaver/internal/pipeline"
)

const publishTimeout = 10 * time.Second

// StoryCreatedEvent is the payload announced on the story events queue when
// a story has been generated and saved.
type StoryCreatedEvent struct {
	StoryID   string    `json:"storyId"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Theme     string    `json:"theme"`
	Language  string    `json:"language"`
	WordCount int       `json:"wordCount"`
	Degraded  bool      `json:"degraded"`
	CreatedAt time.Time `json:"createdAt"`
}

// rabbitMQPublisher implements pipeline.EventPublisher over a RabbitMQ
// channel. The channel is opened by the caller; the queue is declared here
// so startup order between publisher and consumers does not matter.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

var _ pipeline.EventPublisher = (*rabbitMQPublisher)(nil)

// NewStoryEventPublisher opens a channel on the connection and declares the
// durable story events queue.
func NewStoryEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (pipeline.EventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("story event publisher: failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("story event publisher: failed to declare queue %q: %w", queueName, err)
	}

	return &rabbitMQPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("StoryEventPublisher"),
	}, nil
}

func (p *rabbitMQPublisher) PublishStoryCreated(ctx context.Context, story *model.Story) error {
	event := StoryCreatedEvent{
		StoryID:   story.ID.String(),
		OwnerID:   story.OwnerID,
		Title:     story.Title,
		Theme:     story.Theme,
		Language:  story.Language,
		WordCount: story.WordCount,
		Degraded:  story.Degraded,
		CreatedAt: story.CreatedAt,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal story event for %s: %w", event.StoryID, err)
	}
	if err := p.publishMessage(ctx, body); err != nil {
		return fmt.Errorf("failed to publish story event for %s: %w", event.StoryID, err)
	}
	p.logger.Debug("Story event published",
		zap.String("storyID", event.StoryID),
		zap.String("queue", p.queueName),
	)
	return nil
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (default)
			p.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "taleweaver",
			},
		)
		if err == nil {
			return nil
		}
		p.logger.Warn("Publish attempt failed",
			zap.Int("attempt", attempt),
			zap.String("queue", p.queueName),
			zap.Error(err),
		)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return fmt.Errorf("publish to queue %s failed after retries: %w", p.queueName, err)
}
