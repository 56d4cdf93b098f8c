package kafka

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"tiergate/internal/tools/shared"
)

// PlanEventPublisher publishes plan changes to TopicPlanUpgraded
type PlanEventPublisher struct {
	producer *Producer
}

func NewPlanEventPublisher(producer *Producer) *PlanEventPublisher {
	return &PlanEventPublisher{producer: producer}
}

// PublishPlanChanged implements shared.PlanEventPublisher.
// Events are keyed by user so a user's changes stay ordered.
func (p *PlanEventPublisher) PublishPlanChanged(ctx context.Context, event shared.PlanChangedEvent) error {
	return p.producer.Publish(ctx, TopicPlanUpgraded, event.UserID, event)
}

var _ shared.PlanEventPublisher = (*PlanEventPublisher)(nil)

// WebhookEnvelope wraps an inbound webhook body
type WebhookEnvelope struct {
	ID     string          `json:"id"`
	Source string          `json:"source"`
	Body   json.RawMessage `json:"body"`
}

// WebhookPublisher forwards inbound webhooks to TopicWebhooksInbound
type WebhookPublisher struct {
	producer *Producer
}

func NewWebhookPublisher(producer *Producer) *WebhookPublisher {
	return &WebhookPublisher{producer: producer}
}

// PublishWebhook wraps body in an envelope with a fresh id and returns the id
func (p *WebhookPublisher) PublishWebhook(ctx context.Context, source string, body json.RawMessage) (string, error) {
	envelope := WebhookEnvelope{
		ID:     uuid.NewString(),
		Source: source,
		Body:   body,
	}
	if err := p.producer.Publish(ctx, TopicWebhooksInbound, envelope.ID, envelope); err != nil {
		return "", err
	}
	return envelope.ID, nil
}
