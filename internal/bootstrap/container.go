package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-chatstream-be/internal/config"
	"ai-chatstream-be/internal/controller"
	"ai-chatstream-be/internal/pkg/logger"
	"ai-chatstream-be/internal/repository/unitofwork"
	"ai-chatstream-be/internal/service"
	"ai-chatstream-be/internal/websocket"
	"ai-chatstream-be/pkg/audit"
	"ai-chatstream-be/pkg/llm"
	"ai-chatstream-be/pkg/llm/factory"
	pktNats "ai-chatstream-be/pkg/nats"
	"ai-chatstream-be/pkg/ratelimit"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub

	DB     *gorm.DB
	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.IsProduction())
	llmLogger := logger.NewIsolatedLogger(cfg.App.LLMLogFilePath)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Infrastructure
	// NATS
	var auditBus audit.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		auditBus = natsPub
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	limiter := ratelimit.NewFallbackLimiter(
		ratelimit.NewRedisLimiter(rdb, "ratelimit:chat", cfg.Stream.RateLimitPerMinute, time.Minute),
		ratelimit.NewMemoryLimiter(cfg.Stream.RateLimitPerMinute, time.Minute),
		func(err error) {
			sysLogger.Warn("RATE_LIMIT", "Redis limiter failed, using in-memory window", map[string]interface{}{"error": err.Error()})
		},
	)

	// LLM providers
	registry := factory.NewRegistry(context.Background(), ProviderFactoryConfig(cfg.Providers), func(id llm.ProviderID, err error) {
		log.Printf("[WARN] Failed to initialize LLM Provider %s: %v", id, err)
		llmLogger.Warn("LLM_PROVIDER", "Failed to initialize provider", map[string]interface{}{"provider": id, "error": err.Error()})
	})
	for _, info := range registry.Catalog() {
		log.Printf("[INFO] Using LLM Provider: %s %v", info.ID, info.Models)
		llmLogger.Info("LLM_PROVIDER", "Provider registered", map[string]interface{}{"provider": info.ID, "models": info.Models})
	}
	if registry.Len() == 0 {
		log.Printf("[WARN] No LLM Provider configured; every chat turn will be rejected")
	}

	// WebSocket Hub
	wsHub := websocket.NewHub(sysLogger)
	go wsHub.Run()

	// 4. Services
	auditPublisher := audit.NewNatsPublisher(auditBus, sysLogger)
	publisherService := service.NewPublisherService(cfg.Events.TurnTopic, pubSub)
	identityService := service.NewIdentityService(cfg.App.JWTSecret, uowFactory)
	sessionService := service.NewSessionService(uowFactory, auditPublisher)
	consumerService := service.NewConsumerService(pubSub, cfg.Events.TurnTopic, sessionService)
	chatStreamService := service.NewChatStreamService(
		sessionService,
		registry,
		publisherService,
		auditPublisher,
		service.StreamSettings{
			FirstChunkTimeout: cfg.Stream.FirstChunkTimeout,
			IdleTimeout:       cfg.Stream.IdleTimeout,
			FinalizeTimeout:   cfg.Stream.FinalizeTimeout,
		},
		sysLogger,
	)

	// 5. Controllers
	return &Container{
		ChatController: controller.NewChatController(
			sessionService,
			chatStreamService,
			identityService,
			limiter,
			wsHub,
			cfg.Stream.HeartbeatInterval,
			sysLogger,
		),
		ConsumerService: consumerService,
		WebSocketHub:    wsHub,
		DB:              db,
		Logger:          sysLogger,
		closers: []func(){
			wsHub.CloseAll,
			func() {
				if natsPub != nil {
					natsPub.Close()
				}
			},
			func() { _ = rdb.Close() },
			func() { _ = pubSub.Close() },
			func() { _ = llmLogger.Sync() },
			func() { _ = sysLogger.Sync() },
		},
	}
}

// Close releases the connections opened by NewContainer.
func (c *Container) Close() {
	for _, closeFn := range c.closers {
		closeFn()
	}
}

func ProviderFactoryConfig(p config.ProvidersConfig) factory.Config {
	convert := func(pc config.ProviderConfig) factory.ProviderConfig {
		return factory.ProviderConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL, Models: pc.Models}
	}
	return factory.Config{
		OpenAI:        convert(p.OpenAI),
		Anthropic:     convert(p.Anthropic),
		Gemini:        convert(p.Gemini),
		Ollama:        convert(p.Ollama),
		OllamaEnabled: p.OllamaEnabled,
	}
}
