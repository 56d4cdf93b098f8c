package kafka

// Topic definitions for Kafka event streaming
const (
	// TopicPlanUpgraded carries shared.PlanChangedEvent payloads keyed by user id
	TopicPlanUpgraded = "plan.upgraded"

	// TopicWebhooksInbound carries raw third-party webhook bodies
	TopicWebhooksInbound = "webhooks.inbound"
)

// Consumer groups
const (
	GroupProfileSync = "tiergate-profile-sync"
)
