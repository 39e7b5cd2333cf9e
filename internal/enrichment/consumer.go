package enrichment

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

type jobProcessor interface {
	Process(ctx context.Context, job Job) (Result, error)
}

// Consumer receives enrichment jobs from Pub/Sub and runs them through the processor.
type Consumer struct {
	processor    jobProcessor
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer builds an enrichment consumer.
func NewConsumer(processor jobProcessor, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if processor == nil {
		return nil, fmt.Errorf("enrichment processor required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("enrichment subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{processor: processor, subscription: subscription, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

// process acks jobs that can never succeed and nacks retryable failures so
// Pub/Sub redelivers them.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes[attrEventType],
	})

	job, err := DecodeJob(msg)
	if err != nil {
		c.logg.Error(logCtx, "dropping undecodable enrichment job", err)
		return processResult{ack: true}
	}

	if _, err := c.processor.Process(logCtx, job); err != nil {
		if typed := pkgerrors.As(err); typed != nil && pkgerrors.MetadataFor(typed.Code()).Retryable {
			c.logg.Error(logCtx, "enrichment failed, will retry", err)
			return processResult{nack: true}
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			c.logg.Warn(c.logg.WithItemID(logCtx, job.ItemID.String()), "product removed before enrichment, dropping job")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "enrichment failed", err)
		return processResult{ack: true}
	}
	return processResult{ack: true}
}
