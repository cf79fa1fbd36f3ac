package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var errUnknownEvent = errors.New("unknown event type")

const DefaultEventsStream = "governance-events"

// RedisStreamObserver appends every event to a Redis stream.
type RedisStreamObserver struct {
	client  redis.Cmdable
	stream  string
	maxLen  int64
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewRedisStreamObserver(client redis.Cmdable, stream string, logger *zerolog.Logger) *RedisStreamObserver {
	if stream == "" {
		stream = DefaultEventsStream
	}
	return &RedisStreamObserver{
		client:  client,
		stream:  stream,
		maxLen:  10000,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

func (o *RedisStreamObserver) OnModelCall(e ModelCall)            { o.publish(e) }
func (o *RedisStreamObserver) OnValidation(e Validation)          { o.publish(e) }
func (o *RedisStreamObserver) OnRepairAttempt(e RepairAttempt)    { o.publish(e) }
func (o *RedisStreamObserver) OnRunCompleted(r *models.RunRecord) { o.publish(r) }

func (o *RedisStreamObserver) publish(event any) {
	env, err := envelopeFor(event)
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to build event envelope")
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	err = o.client.XAdd(ctx, &redis.XAddArgs{
		Stream: o.stream,
		MaxLen: o.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(env.Type),
			"run_id":  env.RunID,
			"payload": data,
		},
	}).Err()
	if err != nil {
		o.logger.Error().Err(err).Str("stream", o.stream).Str("type", string(env.Type)).Msg("failed to publish event")
	}
}
