package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/executor"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// PayloadField is the stream entry field holding a JSON RunRequest.
const PayloadField = "payload"

type RunService interface {
	Run(ctx context.Context, req models.RunRequest) (*models.RunRecord, error)
}

type Consumer struct {
	client redis.Cmdable
	opts   Options
	runs   RunService
	logger *zerolog.Logger
	onStop []func() error
}

func NewConsumer(client redis.Cmdable, opts Options, runs RunService, logger *zerolog.Logger) *Consumer {
	return &Consumer{
		client: client,
		opts:   opts.Normalize(),
		runs:   runs,
		logger: logger,
	}
}

// OnStop registers fn to run when the consumer stops.
func (c *Consumer) OnStop(fn func() error) {
	c.onStop = append(c.onStop, fn)
}

func (c *Consumer) Setup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.opts.Stream, c.opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("stream", c.opts.Stream).
		Str("group", c.opts.Group).
		Str("consumer", c.opts.Consumer).
		Int64("batch", c.opts.BatchSize).
		Msg("Consumer started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msgs, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.opts.Group,
			Consumer: c.opts.Consumer,
			Streams:  []string{c.opts.Stream, ">"},
			Count:    c.opts.BatchSize,
			Block:    c.opts.Block,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.logger.Error().Err(err).Msg("Failed to read from stream")
			continue
		}

		for _, s := range msgs {
			for _, msg := range s.Messages {
				c.process(ctx, msg)
			}
		}
	}
}

func (c *Consumer) Stop() error {
	var errs []error
	for _, fn := range c.onStop {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

// process executes one message. Undecodable and invalid requests are
// acked and dropped. Any other run error leaves the message unacked in the
// group's pending list. The consumer never reclaims it; redelivery is an
// operator action (XCLAIM or XAUTOCLAIM).
func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	c.logger.Info().Str("id", msg.ID).Msg("Message received")

	payload, ok := msg.Values[PayloadField].(string)
	if !ok {
		c.logger.Error().Str("id", msg.ID).Msg("Missing payload field")
		c.ack(ctx, msg.ID)
		return
	}

	var req models.RunRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Failed to decode message")
		c.ack(ctx, msg.ID)
		return
	}

	rec, err := c.runs.Run(ctx, req)
	if err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Run failed")
		if errors.Is(err, executor.ErrInvalidRequest) {
			c.ack(ctx, msg.ID)
		}
		return
	}

	c.logger.Info().
		Str("id", msg.ID).
		Str("run_id", rec.RunID).
		Str("status", string(rec.Status)).
		Int("repairs", rec.Repairs).
		Msg("Run complete")

	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	if err := c.client.XAck(ctx, c.opts.Stream, c.opts.Group, msgID).Err(); err != nil {
		c.logger.Error().Err(err).Str("id", msgID).Msg("Failed to ACK message")
	}
}
