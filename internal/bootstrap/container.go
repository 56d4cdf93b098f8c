package bootstrap

import (
	"context"
	"sync"

	"google.golang.org/adk/model"

	chclient "tiergate/internal/adapters/clickhouse"
	"tiergate/internal/adapters/config"
	"tiergate/internal/adapters/kafka"
	pgclient "tiergate/internal/adapters/postgres"
	redisclient "tiergate/internal/adapters/redis"
	tgadapter "tiergate/internal/adapters/telegram"
	"tiergate/internal/agents"
	"tiergate/internal/api"
	"tiergate/internal/api/health"
	tgapi "tiergate/internal/api/telegram"
	"tiergate/internal/consumers"
	"tiergate/internal/domain/profile"
	domainsession "tiergate/internal/domain/session"
	"tiergate/internal/domain/stats"
	chrepo "tiergate/internal/repository/clickhouse"
	authsvc "tiergate/internal/services/auth"
	"tiergate/internal/tools"
	"tiergate/internal/workers"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure layer, nil when not configured
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos       *Repositories
	Services    *Services
	Adapters    *Adapters
	Business    *Business
	Application *Application
	Background  *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	Session domainsession.Repository
	Profile profile.Repository
	Stats   stats.Repository // nil without ClickHouse

	// UsageBuffer is Stats when ClickHouse is configured
	UsageBuffer *chrepo.BufferedStatsRepository
}

// Services groups domain and application services
type Services struct {
	Session *domainsession.Service
	Profile *profile.Service
	Auth    *authsvc.Service
}

// Adapters groups all external adapters
type Adapters struct {
	KafkaProducer     *kafka.Producer
	PlanEvents        *kafka.PlanEventPublisher
	Webhooks          *kafka.WebhookPublisher
	ProfileSyncReader *kafka.Consumer
	Model             model.LLM
	SessionLocker     agents.SessionLocker
	TelegramBot       *tgadapter.Bot
}

// Business groups the tier gating core and the agent built on it
type Business struct {
	ToolRegistry  *tools.Registry
	Resolver      *tools.Resolver
	AgentRegistry *agents.Registry
	Turns         *agents.TurnRunner
}

// Application groups the user facing surfaces
type Application struct {
	HTTPServer      *api.Server
	HealthHandler   *health.Handler
	TelegramHandler *tgapi.Handler
}

// Background groups all background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler
	ProfileSync     *consumers.ProfileSyncConsumer
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Services:    &Services{},
		Adapters:    &Adapters{},
		Business:    &Business{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order.
// Panics on any initialization error (fail-fast at startup).
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitBusiness()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start starts the HTTP server, the Telegram bot, consumers and workers
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Repos.UsageBuffer != nil {
		c.Repos.UsageBuffer.Start(c.Context)
	}

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.startConsumers()

	if bot := c.Adapters.TelegramBot; bot != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			if err := bot.Start(c.Context); err != nil {
				c.Log.Errorw("Telegram bot failed", "error", err)
			}
		}()
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorw("HTTP server failed", "error", err)
			c.Cancel() // fatal HTTP error triggers shutdown
		}
	}()

	c.Log.Infow("✓ All systems operational",
		"apps", c.Business.Turns.Apps(),
		"tools", c.Business.ToolRegistry.Len(),
		"telegram", c.Adapters.TelegramBot != nil,
	)
	return nil
}

// startConsumers starts Kafka consumers in background goroutines
func (c *Container) startConsumers() {
	if c.Background.ProfileSync == nil {
		return
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Background.ProfileSync.Start(c.Context); err != nil && c.Context.Err() == nil {
			c.Log.Errorw("Profile sync consumer failed", "error", err)
		}
	}()
	c.Log.Infow("✓ Event consumers started", "consumers", []string{"profile_sync"})
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// stop accepting chat updates before anything they depend on goes away
	if c.Adapters.TelegramBot != nil {
		c.Adapters.TelegramBot.Stop()
	}

	c.Cancel()

	c.Lifecycle.Shutdown(ShutdownTargets{
		WG:              c.WG,
		HTTPServer:      c.Application.HTTPServer,
		WorkerScheduler: c.Background.WorkerScheduler,
		Consumers:       map[string]*kafka.Consumer{"profile_sync": c.Adapters.ProfileSyncReader},
		KafkaProducer:   c.Adapters.KafkaProducer,
		UsageBuffer:     c.Repos.UsageBuffer,
		PG:              c.PG,
		CH:              c.CH,
		Redis:           c.Redis,
		ErrorTracker:    c.ErrorTracker,
	}, c.Log)
}

// GetMetrics returns counts for observability
func (c *Container) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"tools":  c.Business.ToolRegistry.Len(),
		"agents": len(c.Business.AgentRegistry.List()),
	}
}
