package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"demand_forecast/internal/metrics"
	"demand_forecast/internal/predictor"
)

// DefaultChannel is the pub/sub channel reports are published on.
const DefaultChannel = "forecast:events"

// Publisher is the subset of *redis.Client the sink uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes reports and predictions as JSON on a pub/sub channel.
type RedisSink struct {
	client  Publisher
	channel string
}

func NewRedisSink(client Publisher, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// Dial connects to redisURL and verifies the connection.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

type event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (s *RedisSink) Report(ctx context.Context, r predictor.EvaluationReport) error {
	return s.publish(ctx, TypeReport, r)
}

func (s *RedisSink) Prediction(ctx context.Context, p predictor.Prediction) error {
	return s.publish(ctx, TypePrediction, p)
}

func (s *RedisSink) publish(ctx context.Context, msgType string, payload any) error {
	data, err := json.Marshal(event{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", msgType, err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s failed: %w", msgType, err)
	}
	metrics.ReportsPublished.WithLabelValues("redis").Inc()
	return nil
}
