package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types consumed by the downstream insight worker.
const (
	TypeInsightGenerate = "insights:generate"
)

// InsightPayload is the payload for an insight generation task.
type InsightPayload struct {
	UserID  string `json:"user_id"`
	Trigger string `json:"trigger"`
}

// Client wraps an asynq producer. This service only enqueues; the consumer
// lives in the insight worker deployment.
type Client struct {
	client *asynq.Client
}

func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

// EnqueueInsightGeneration schedules insight generation for a user. Tasks are
// deduplicated for an hour so a burst of webhook deliveries enqueues once.
func (c *Client) EnqueueInsightGeneration(ctx context.Context, userID, trigger string) error {
	payload, err := json.Marshal(InsightPayload{UserID: userID, Trigger: trigger})
	if err != nil {
		return fmt.Errorf("marshal insight payload: %w", err)
	}

	task := asynq.NewTask(TypeInsightGenerate, payload)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue("insights"),
		asynq.MaxRetry(3),
		asynq.Unique(time.Hour),
	)
	if err != nil {
		return fmt.Errorf("enqueue insight task: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
