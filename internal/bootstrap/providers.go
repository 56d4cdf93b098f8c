package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	adkadapter "tiergate/internal/adapters/adk"
	chclient "tiergate/internal/adapters/clickhouse"
	"tiergate/internal/adapters/config"
	errnoop "tiergate/internal/adapters/errors/noop"
	"tiergate/internal/adapters/errors/sentry"
	"tiergate/internal/adapters/kafka"
	pgclient "tiergate/internal/adapters/postgres"
	redisclient "tiergate/internal/adapters/redis"
	tgadapter "tiergate/internal/adapters/telegram"
	"tiergate/internal/agents"
	"tiergate/internal/agents/callbacks"
	"tiergate/internal/api"
	"tiergate/internal/api/health"
	tgapi "tiergate/internal/api/telegram"
	"tiergate/internal/domain/profile"
	domainsession "tiergate/internal/domain/session"
	"tiergate/internal/metrics"
	chrepo "tiergate/internal/repository/clickhouse"
	"tiergate/internal/repository/memory"
	pgrepo "tiergate/internal/repository/postgres"
	authsvc "tiergate/internal/services/auth"
	"tiergate/internal/tools"
	"tiergate/internal/tools/general"
	"tiergate/internal/tools/shared"
	"tiergate/pkg/auth"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

const connectTimeout = 10 * time.Second

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the configured data stores.
// Every store is optional; an unset host leaves its client nil.
func (c *Container) MustInitInfrastructure() {
	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	var err error

	if c.Config.Postgres.Enabled() {
		c.Log.Info("Connecting to PostgreSQL...")
		c.PG, err = pgclient.NewClient(ctx, c.Config.Postgres)
		if err != nil {
			c.Log.Fatalf("failed to connect postgres: %v", err)
		}
		if err := c.PG.EnsureSchema(ctx); err != nil {
			c.Log.Fatalf("failed to apply postgres schema: %v", err)
		}
		c.Log.Info("✓ PostgreSQL connected")
	}

	if c.Config.ClickHouse.Enabled() {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(ctx, c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	}

	if c.Config.Redis.Enabled() {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			c.Log.Fatalf("failed to connect redis: %v", err)
		}
		c.Log.Info("✓ Redis connected")
	}
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories picks a backend per repository
func (c *Container) MustInitRepositories() {
	if c.Config.Sessions.UsePostgres() {
		c.Repos.Session = pgrepo.NewSessionRepository(c.PG.DB())
	} else {
		c.Repos.Session = memory.NewSessionRepository()
	}

	if c.PG != nil {
		c.Repos.Profile = pgrepo.NewProfileRepository(c.PG.DB())
	} else {
		c.Repos.Profile = memory.NewProfileRepository()
	}

	if c.CH != nil {
		repo := chrepo.NewStatsRepository(c.CH.Conn())
		ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
		defer cancel()
		if err := repo.EnsureSchema(ctx); err != nil {
			c.Log.Fatalf("failed to apply clickhouse schema: %v", err)
		}
		c.Repos.UsageBuffer = chrepo.NewBufferedStatsRepository(repo, c.Config.ClickHouse.BatchSize, c.Config.ClickHouse.FlushInterval, c.Log)
		c.Repos.Stats = c.Repos.UsageBuffer
	}

	c.Log.Infow("✓ Repositories initialized",
		"sessions", c.Config.Sessions.Backend,
		"profiles_postgres", c.PG != nil,
		"usage_stats", c.Repos.Stats != nil,
	)
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes Kafka, the session lock, the model and Telegram
func (c *Container) MustInitAdapters() {
	if c.Config.Kafka.Enabled() {
		c.Adapters.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{Brokers: c.Config.Kafka.Brokers}, c.Log)
		c.Adapters.PlanEvents = kafka.NewPlanEventPublisher(c.Adapters.KafkaProducer)
		c.Adapters.Webhooks = kafka.NewWebhookPublisher(c.Adapters.KafkaProducer)
		c.Adapters.ProfileSyncReader = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: c.Config.Kafka.Brokers,
			GroupID: kafka.GroupProfileSync,
			Topic:   kafka.TopicPlanUpgraded,
		}, c.Log)
		c.Log.Infow("✓ Kafka configured", "brokers", c.Config.Kafka.Brokers)
	}

	if c.Redis != nil {
		c.Adapters.SessionLocker = agents.NewRedisLocker(
			c.Redis,
			c.Config.Sessions.LockTTL,
			c.Config.Sessions.LockWait,
			c.Log,
		)
	} else {
		c.Adapters.SessionLocker = agents.NewLocalLocker()
	}

	llm, err := adkadapter.NewModel(c.Context, c.Config.AI, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to create model: %v", err)
	}
	c.Adapters.Model = llm
	c.Log.Infow("✓ Model initialized", "provider", c.Config.AI.Provider, "model", llm.Name())

	if c.Config.Telegram.Enabled() {
		bot, err := tgadapter.NewBot(tgadapter.Config{
			Token: c.Config.Telegram.BotToken,
			Debug: c.Config.Telegram.Debug,
		}, c.Log)
		if err != nil {
			c.Log.Fatalf("failed to create telegram bot: %v", err)
		}
		c.Adapters.TelegramBot = bot
	}
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices initializes session, profile and auth services
func (c *Container) MustInitServices() {
	c.Services.Session = domainsession.NewService(c.Repos.Session, c.Log)
	c.Services.Profile = profile.NewService(c.Repos.Profile, c.Log)

	if c.PG == nil {
		c.loadMockProfiles()
	}

	jwtService := auth.NewJWTService(c.Config.Auth.JWTSecret, c.Config.App.Name, c.Config.Auth.TokenTTL)
	c.Services.Auth = authsvc.NewService(c.Services.Profile, jwtService, c.Log)

	c.Log.Info("✓ Services initialized")
}

// loadMockProfiles fills the in-memory profile store from the mock database.
// A missing file leaves every user on Basic.
func (c *Container) loadMockProfiles() {
	path := c.Config.Auth.MockDatabasePath
	if _, err := os.Stat(path); err != nil {
		c.Log.Warnw("Mock database not found, all users start on Basic", "path", path)
		return
	}

	file, err := profile.LoadSeedFile(path)
	if err != nil {
		c.Log.Fatalf("failed to load mock database: %v", err)
	}
	n, err := c.Services.Profile.Import(c.Context, file.Users, bcrypt.DefaultCost)
	if err != nil {
		c.Log.Fatalf("failed to import mock database: %v", err)
	}
	c.Log.Infow("✓ Profiles loaded", "path", path, "count", n)
}

// ========================================
// Phase 6: Agent & Tools
// ========================================

// MustInitBusiness builds the tier gated tool catalog, the agent and the turn runner
func (c *Container) MustInitBusiness() {
	toolDeps := shared.Deps{Log: c.Log}
	if c.Adapters.PlanEvents != nil {
		toolDeps.Events = c.Adapters.PlanEvents
	}

	c.Business.ToolRegistry = tools.NewRegistry()
	if err := general.Register(c.Business.ToolRegistry, toolDeps); err != nil {
		// a duplicate capability must keep the deployment from serving
		c.Log.Fatalf("failed to register tools: %v", err)
	}
	c.Business.Resolver = tools.NewResolver(c.Business.ToolRegistry, c.Log)

	cbDeps := callbacks.Deps{
		Log:      c.Log,
		Resolver: c.Business.Resolver,
		Tracker:  c.ErrorTracker,
	}
	if c.Repos.Stats != nil {
		cbDeps.Stats = c.Repos.Stats
	}

	basic, err := agents.NewBasicAgent(agents.BasicAgentConfig{
		Model:     c.Adapters.Model,
		Callbacks: cbDeps,
	})
	if err != nil {
		c.Log.Fatalf("failed to create agent: %v", err)
	}

	c.Business.AgentRegistry = agents.NewRegistry()
	c.Business.AgentRegistry.Register(basic)

	runnerCfg := agents.TurnRunnerConfig{
		Agents:      c.Business.AgentRegistry,
		Sessions:    adkadapter.NewSessionService(c.Services.Session, c.Log),
		Profiles:    c.Services.Profile,
		Locker:      c.Adapters.SessionLocker,
		TurnTimeout: c.Config.Sessions.TurnTimeout,
		Log:         c.Log,
	}
	if c.Adapters.PlanEvents != nil {
		runnerCfg.Events = c.Adapters.PlanEvents
	}

	c.Business.Turns, err = agents.NewTurnRunner(runnerCfg)
	if err != nil {
		c.Log.Fatalf("failed to create turn runner: %v", err)
	}

	c.Log.Infow("✓ Agent initialized",
		"apps", c.Business.AgentRegistry.List(),
		"tools", tools.Names(c.Business.ToolRegistry.All()),
	)
}

// ========================================
// Phase 7: Application Layer
// ========================================

// MustInitApplication builds the HTTP API and the Telegram front-end
func (c *Container) MustInitApplication() {
	c.Application.HealthHandler = provideHealthHandler(c)

	deps := api.Deps{
		Turns:    c.Business.Turns,
		Resolver: c.Business.Resolver,
		Auth:     c.Services.Auth,
		Health:   c.Application.HealthHandler,
	}
	if c.Adapters.Webhooks != nil {
		deps.Webhooks = c.Adapters.Webhooks
	}

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:         c.Config.HTTP.Port,
		ServiceName:  c.Config.App.Name,
		Version:      c.Config.App.Version,
		AllowOrigins: c.Config.HTTP.AllowOrigins,
		ReadTimeout:  c.Config.HTTP.ReadTimeout,
		WriteTimeout: c.Config.HTTP.WriteTimeout,
		AdminToken:   c.Config.Auth.AdminToken,
		RequireAuth:  c.Config.Auth.RequireToken,
	}, deps, c.Log)

	if !c.Config.Auth.RequireToken {
		c.Log.Warn("AUTH_REQUIRE_TOKEN is off, run and session routes accept any user id")
	}
	if c.Config.Auth.AdminToken == "" {
		c.Log.Warn("ADMIN_TOKEN is empty, catalog and plan injection routes are disabled")
	}

	if c.PG != nil || c.CH != nil {
		var (
			pgDB   *sqlx.DB
			chConn driver.Conn
		)
		if c.PG != nil {
			pgDB = c.PG.DB()
		}
		if c.CH != nil {
			chConn = c.CH.Conn()
		}
		metrics.RegisterStoreCollector(metrics.NewStoreCollector(c.Log, pgDB, chConn))
	}

	if bot := c.Adapters.TelegramBot; bot != nil {
		c.Application.TelegramHandler = tgapi.NewHandler(bot, c.Business.Turns, c.Business.Resolver, agents.BasicAgentName, c.Log)
		bot.SetHandler(c.Application.TelegramHandler.HandleUpdate)
		c.Log.Info("✓ Telegram handler initialized")
	}

	c.Log.Info("✓ Application layer initialized")
}

func provideHealthHandler(c *Container) *health.Handler {
	h := health.New(c.Log, c.Config.App.Name, c.Config.App.Version)
	if c.PG != nil {
		h.Register("postgres", c.PG)
	}
	if c.CH != nil {
		h.Register("clickhouse", c.CH)
	}
	if c.Redis != nil {
		h.Register("redis", c.Redis)
	}
	return h
}

// provideErrorTracker returns Sentry when enabled, noop otherwise
func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnw("Failed to initialize Sentry, falling back to noop tracker", "error", err)
		return errnoop.New()
	}
	log.Infow("✓ Error tracking initialized", "environment", cfg.ErrorTracking.Environment)
	return tracker
}
