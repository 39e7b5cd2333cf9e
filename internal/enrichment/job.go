package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const (
	attrEventType = "event_type"
	attrUserID    = "user_id"
	eventType     = "wishlist.item_captured"
)

// Job asks the worker to enrich one captured product. HTML may be empty, in
// which case the worker fetches SourceURL itself.
type Job struct {
	HTML      string    `json:"html,omitempty"`
	ItemID    uuid.UUID `json:"item_id"`
	UserID    uuid.UUID `json:"user_id"`
	SourceURL string    `json:"source_url"`
}

func (j Job) validate() error {
	if j.ItemID == uuid.Nil {
		return errors.New("item id is required")
	}
	if j.UserID == uuid.Nil {
		return errors.New("user id is required")
	}
	if strings.TrimSpace(j.HTML) == "" && strings.TrimSpace(j.SourceURL) == "" {
		return errors.New("html or source url is required")
	}
	return nil
}

// Trigger hands a job to the background enrichment path. Completion is only
// observable through a later refresh.
type Trigger interface {
	Trigger(ctx context.Context, job Job) error
}

type publishFunc func(ctx context.Context, msg *pubsub.Message) (string, error)

// PubSubTrigger publishes jobs to the enrichment topic.
type PubSubTrigger struct {
	publish publishFunc
}

// NewPubSubTrigger wraps the enrichment topic publisher.
func NewPubSubTrigger(publisher *pubsub.Publisher) (*PubSubTrigger, error) {
	if publisher == nil {
		return nil, errors.New("enrichment publisher is required")
	}
	return &PubSubTrigger{
		publish: func(ctx context.Context, msg *pubsub.Message) (string, error) {
			return publisher.Publish(ctx, msg).Get(ctx)
		},
	}, nil
}

// Trigger publishes the job and waits for the server ack.
func (t *PubSubTrigger) Trigger(ctx context.Context, job Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode enrichment job: %w", err)
	}
	_, err = t.publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			attrEventType: eventType,
			attrUserID:    job.UserID.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("publish enrichment job: %w", err)
	}
	return nil
}

// DecodeJob parses a job published by PubSubTrigger.
func DecodeJob(msg *pubsub.Message) (Job, error) {
	if msg == nil {
		return Job{}, errors.New("message is nil")
	}
	if got := msg.Attributes[attrEventType]; got != "" && got != eventType {
		return Job{}, fmt.Errorf("unexpected event type %q", got)
	}
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		return Job{}, fmt.Errorf("decode enrichment job: %w", err)
	}
	if err := job.validate(); err != nil {
		return Job{}, err
	}
	return job, nil
}
