package events

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/rs/zerolog"
)

// PubSubObserver publishes events to a Google Cloud Pub/Sub topic. Publish
// results are awaited off the caller's goroutine.
type PubSubObserver struct {
	ctx    context.Context
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zerolog.Logger
}

func NewPubSubObserver(ctx context.Context, projectID, topicID string, logger *zerolog.Logger) (*PubSubObserver, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &PubSubObserver{
		ctx:    ctx,
		client: client,
		topic:  client.Topic(topicID),
		logger: logger,
	}, nil
}

func (o *PubSubObserver) OnModelCall(e ModelCall)            { o.publish(e) }
func (o *PubSubObserver) OnValidation(e Validation)          { o.publish(e) }
func (o *PubSubObserver) OnRepairAttempt(e RepairAttempt)    { o.publish(e) }
func (o *PubSubObserver) OnRunCompleted(r *models.RunRecord) { o.publish(r) }

func (o *PubSubObserver) publish(event any) {
	env, err := envelopeFor(event)
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to build event envelope")
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		o.logger.Error().Err(err).Msg("pubsub marshal failed")
		return
	}

	res := o.topic.Publish(o.ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":   string(env.Type),
			"run_id": env.RunID,
		},
	})

	go func() {
		if _, err := res.Get(o.ctx); err != nil {
			o.logger.Error().Err(err).Str("type", string(env.Type)).Msg("pubsub publish failed")
		}
	}()
}

func (o *PubSubObserver) Close() error {
	o.topic.Stop()
	return o.client.Close()
}
