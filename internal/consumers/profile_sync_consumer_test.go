package consumers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tiergate/internal/domain/plan"
	"tiergate/internal/domain/profile"
	"tiergate/internal/repository/memory"
	"tiergate/internal/tools/shared"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

type failingSyncer struct{}

func (failingSyncer) SyncPlan(context.Context, string, plan.Tier) (bool, error) {
	return false, errors.ErrUnavailable
}

func planMessage(t *testing.T, event shared.PlanChangedEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.UserID), Value: data}
}

func TestProfileSyncConsumer_HandleMessage(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProfileRepository()
	profiles := profile.NewService(repo, logger.Nop())
	_, err := profiles.Import(ctx, []profile.Seed{
		{UserID: "u_123", Username: "admin", Password: "password123", Plan: 1},
		{UserID: "u_team", Username: "team", Password: "team123", Plan: 3},
	}, bcrypt.MinCost)
	require.NoError(t, err)

	c := NewProfileSyncConsumer(nil, profiles, logger.Nop())

	tests := []struct {
		name     string
		msg      kafka.Message
		userID   string
		wantPlan plan.Tier
	}{
		{
			name: "raises basic to pro",
			msg: planMessage(t, shared.PlanChangedEvent{
				UserID: "u_123", SessionID: "s1", From: plan.Basic, To: plan.Pro,
				Source: "tool", OccurredAt: time.Now(),
			}),
			userID:   "u_123",
			wantPlan: plan.Pro,
		},
		{
			name:     "never lowers team",
			msg:      planMessage(t, shared.PlanChangedEvent{UserID: "u_team", From: plan.Team, To: plan.Pro}),
			userID:   "u_team",
			wantPlan: plan.Team,
		},
		{
			name:     "unknown user ignored",
			msg:      planMessage(t, shared.PlanChangedEvent{UserID: "ghost", To: plan.Pro}),
			userID:   "u_123",
			wantPlan: plan.Pro,
		},
		{
			name:     "malformed payload dropped",
			msg:      kafka.Message{Value: []byte("{not json")},
			userID:   "u_123",
			wantPlan: plan.Pro,
		},
		{
			name:     "out of range tier dropped",
			msg:      planMessage(t, shared.PlanChangedEvent{UserID: "u_123", To: plan.Tier(9)}),
			userID:   "u_123",
			wantPlan: plan.Pro,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.HandleMessage(ctx, tt.msg))

			p, err := profiles.Get(ctx, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPlan, p.Plan)
		})
	}
}

func TestProfileSyncConsumer_StoreError(t *testing.T) {
	c := NewProfileSyncConsumer(nil, failingSyncer{}, logger.Nop())

	err := c.HandleMessage(context.Background(), planMessage(t, shared.PlanChangedEvent{UserID: "u_1", To: plan.Pro}))
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}
