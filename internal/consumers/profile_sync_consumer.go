package consumers

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	kafkaadapter "tiergate/internal/adapters/kafka"
	"tiergate/internal/domain/plan"
	"tiergate/internal/metrics"
	"tiergate/internal/tools/shared"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// PlanSyncer raises a stored profile plan
type PlanSyncer interface {
	SyncPlan(ctx context.Context, userID string, tier plan.Tier) (bool, error)
}

// ProfileSyncConsumer reads plan.upgraded events and raises the stored
// profile plan so new sessions of the user start at the upgraded tier.
type ProfileSyncConsumer struct {
	consumer *kafkaadapter.Consumer
	profiles PlanSyncer
	log      *logger.Logger
}

// NewProfileSyncConsumer creates a new profile sync consumer
func NewProfileSyncConsumer(consumer *kafkaadapter.Consumer, profiles PlanSyncer, log *logger.Logger) *ProfileSyncConsumer {
	return &ProfileSyncConsumer{
		consumer: consumer,
		profiles: profiles,
		log:      log.With("component", "profile_sync_consumer"),
	}
}

// Start consumes until ctx is cancelled, then closes the reader
func (c *ProfileSyncConsumer) Start(ctx context.Context) error {
	c.log.Infow("Starting profile sync consumer", "topic", kafkaadapter.TopicPlanUpgraded)

	defer func() {
		if err := c.consumer.Close(); err != nil {
			c.log.Errorw("Failed to close profile sync consumer", "error", err)
		} else {
			c.log.Infow("✓ Profile sync consumer closed")
		}
	}()

	err := c.consumer.Consume(ctx, c.HandleMessage)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// HandleMessage applies one plan.upgraded event. Malformed payloads are
// logged and dropped so a poison message cannot stall the group.
func (c *ProfileSyncConsumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event shared.PlanChangedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Warnw("Dropping malformed plan event", "offset", msg.Offset, "error", err)
		metrics.RecordProfileSync("ignored")
		return nil
	}
	if event.UserID == "" || !event.To.Valid() {
		c.log.Warnw("Dropping plan event without user or tier", "offset", msg.Offset, "user", event.UserID, "to", int(event.To))
		metrics.RecordProfileSync("ignored")
		return nil
	}

	raised, err := c.profiles.SyncPlan(ctx, event.UserID, event.To)
	if err != nil {
		metrics.RecordProfileSync("error")
		return errors.Wrapf(err, "sync plan of %s", event.UserID)
	}

	if raised {
		metrics.RecordProfileSync("raised")
		c.log.Infow("Profile plan raised from event",
			"user", event.UserID,
			"session", event.SessionID,
			"to", event.To.String(),
			"source", event.Source,
		)
	} else {
		metrics.RecordProfileSync("ignored")
	}
	return nil
}
