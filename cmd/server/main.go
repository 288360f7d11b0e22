package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/localmind-ai/localmind-backend/internal/config"
	"github.com/localmind-ai/localmind-backend/internal/data/repos"
	"github.com/localmind-ai/localmind-backend/internal/db"
	apphttp "github.com/localmind-ai/localmind-backend/internal/http"
	"github.com/localmind-ai/localmind-backend/internal/http/handlers"
	"github.com/localmind-ai/localmind-backend/internal/http/middleware"
	"github.com/localmind-ai/localmind-backend/internal/llm"
	"github.com/localmind-ai/localmind-backend/internal/llm/oaihttp"
	"github.com/localmind-ai/localmind-backend/internal/observability"
	"github.com/localmind-ai/localmind-backend/internal/platform/envutil"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
	"github.com/localmind-ai/localmind-backend/internal/rag"
	"github.com/localmind-ai/localmind-backend/internal/realtime/bus"
	"github.com/localmind-ai/localmind-backend/internal/services"
	"github.com/localmind-ai/localmind-backend/internal/ws"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration from main...")
	cfg, err := config.Load(log)
	if err != nil {
		log.Error("Could not load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (opt-in)
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "localmind-backend",
		Environment: logMode,
		Version:     envutil.String("APP_VERSION", "dev"),
	})
	if otelShutdown != nil {
		defer func() { _ = otelShutdown(context.Background()) }()
	}

	// Database
	dbService, err := db.New(cfg.DB, log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}
	gdb := dbService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(gdb, log)
	sessionRepo := repos.NewSessionRepo(gdb, log)
	messageRepo := repos.NewMessageRepo(gdb, log)
	documentRepo := repos.NewDocumentRepo(gdb, log)
	templateRepo := repos.NewTemplateRepo(gdb, log)

	// Realtime bus: redis when configured, process-local otherwise.
	var eventBus bus.Bus
	if cfg.Redis.Addr != "" {
		eventBus, err = bus.NewRedisBus(cfg.Redis, log)
		if err != nil {
			log.Error("Redis bus init failed", "error", err)
			os.Exit(1)
		}
	} else {
		eventBus = bus.NewMemoryBus()
	}
	defer eventBus.Close()

	// Services
	log.Info("Setting up services from main...")
	engine := oaihttp.New(cfg.LLM, log)
	llmService := llm.NewService(engine, log)
	ragService := rag.NewService(documentRepo, log)
	authService := services.NewAuthService(gdb, log, userRepo, cfg.Auth.JWTSecretKey, cfg.Auth.AccessTokenTTL)
	chatService := services.NewChatService(gdb, log, sessionRepo, messageRepo, templateRepo, ragService, llmService, eventBus, cfg.RAG.TopK)
	templateService := services.NewTemplateService(log, templateRepo)

	// Websocket hub wired to the bus so updates fan out across instances.
	hub := ws.NewHub(log)
	if err := eventBus.StartForwarder(ctx, hub.Dispatch); err != nil {
		log.Error("Bus forwarder init failed", "error", err)
		os.Exit(1)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	sessionHandler := handlers.NewSessionHandler(chatService)
	documentHandler := handlers.NewDocumentHandler(ragService, documentRepo)
	templateHandler := handlers.NewTemplateHandler(templateService)
	healthHandler := handlers.NewHealthHandler(llmService)
	wsChatHandler := ws.NewChatHandler(log, authService, chatService, hub)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	server := apphttp.NewServer(apphttp.RouterConfig{
		Log:             log,
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		SessionHandler:  sessionHandler,
		DocumentHandler: documentHandler,
		TemplateHandler: templateHandler,
		WSChatHandler:   wsChatHandler,
		HealthHandler:   healthHandler,
		TracingEnabled:  otelShutdown != nil,
	})

	if llmService.Loaded() {
		log.Info("Model backend reachable", "base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model)
	} else {
		log.Warn("Model backend not reachable; chat degrades to an unavailability notice", "base_url", cfg.LLM.BaseURL)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "port", cfg.Port)
		return server.Run(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received")
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
