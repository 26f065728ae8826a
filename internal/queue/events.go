package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventChannel is the pub/sub channel job lifecycle events are published on.
const EventChannel = "pdfextract:events"

// Publisher emits job lifecycle events over Redis pub/sub so API frontends
// can stream status to clients without polling.
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(redisURL string) (*Publisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Publisher{client: client, channel: EventChannel}, nil
}

// PublishEvent publishes one event. Extra fields are merged into the event
// body; event, job_id and timestamp are always present.
func (p *Publisher) PublishEvent(ctx context.Context, event, jobID string, fields map[string]interface{}) error {
	body := map[string]interface{}{
		"event":     event,
		"job_id":    jobID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		body[k] = v
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
