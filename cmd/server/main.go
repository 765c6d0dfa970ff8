package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/suPer8Hu/localchat/internal/ai"
	"github.com/suPer8Hu/localchat/internal/audit"
	"github.com/suPer8Hu/localchat/internal/auth"
	"github.com/suPer8Hu/localchat/internal/chat"
	"github.com/suPer8Hu/localchat/internal/config"
	"github.com/suPer8Hu/localchat/internal/credential"
	"github.com/suPer8Hu/localchat/internal/db"
	"github.com/suPer8Hu/localchat/internal/httpapi"
	"github.com/suPer8Hu/localchat/internal/httpapi/handlers"
	"github.com/suPer8Hu/localchat/internal/logger"
	"github.com/suPer8Hu/localchat/internal/models"
	"github.com/suPer8Hu/localchat/internal/store/rabbitmq"
	"github.com/suPer8Hu/localchat/internal/store/redisstore"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real env vars win
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = log.Sync() }()
	log.Info("starting server", zap.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("connect db", zap.Error(err))
	}
	if err := db.Migrate(gdb, &models.Credential{}); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	hasher, err := auth.NewPasswordHasher(cfg.PasswordHasher)
	if err != nil {
		log.Fatal("password hasher", zap.Error(err))
	}
	credRepo := credential.NewRepo(gdb)
	store, err := credential.NewStore(credRepo, hasher)
	if err != nil {
		log.Fatal("credential store", zap.Error(err))
	}
	users, err := credRepo.Count(ctx)
	if err != nil {
		log.Fatal("credential store unreachable", zap.Error(err))
	}
	log.Info("credential store ready", zap.String("driver", cfg.DBDriver), zap.Int64("users", users))

	// generation backend, shared by every session
	reg := ai.NewRegistry()
	reg.Register("ollama", func(_ context.Context, model string) (ai.Provider, error) {
		if m := strings.TrimSpace(model); m != "" {
			return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	})
	reg.Register("openrouter", func(_ context.Context, model string) (ai.Provider, error) {
		if m := strings.TrimSpace(model); m != "" {
			return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	provider, err := reg.Get(ctx, cfg.AIProvider, "")
	if err != nil {
		log.Fatal("ai provider", zap.Error(err), zap.Strings("available", reg.Names()))
	}
	backend := ai.NewBackend(provider, 0)
	go func() {
		start := time.Now()
		if err := backend.Init(ctx); err != nil {
			log.Warn("backend warm-up failed; replies will use the fallback", zap.Error(err))
			return
		}
		log.Info("backend ready", zap.String("provider", cfg.AIProvider), zap.Duration("cost", time.Since(start)))
	}()

	var events audit.Publisher = audit.Nop{}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.AuditQueue)
		if err != nil {
			log.Fatal("rabbit publisher", zap.Error(err))
		}
		defer func() { _ = pub.Close() }()
		events = pub
	}

	opts := []chat.ManagerOption{
		chat.WithAudit(events),
		chat.WithIdleTTL(cfg.SessionIdleTTL),
	}
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		opts = append(opts, chat.WithLoginThrottle(&redisstore.LoginThrottle{
			Store:       redisstore.New(rdb),
			MaxFailures: int64(cfg.LoginMaxFailures),
			Window:      cfg.LoginFailureWindow,
		}))
	}
	sessions := chat.NewManager(store, log, opts...)

	sweeper, err := chat.StartSweeper(sessions, cfg.SweepSchedule, log)
	if err != nil {
		log.Fatal("session sweeper", zap.Error(err), zap.String("schedule", cfg.SweepSchedule))
	}
	defer sweeper.Stop()

	processor := chat.NewProcessor(backend, chat.ProcessorConfig{
		MaxTokens:       cfg.GenMaxTokens,
		Timeout:         cfg.GenTimeout,
		FallbackMessage: cfg.FallbackMessage,
	}, log, events)

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(&handlers.Handler{
		Credentials: store,
		Sessions:    sessions,
		Processor:   processor,
		Events:      events,
		Log:         log,
		JWTSecret:   cfg.JWTSecret,
		TokenTTL:    cfg.TokenTTL,
	}, cfg, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	// in-flight generations may take up to GEN_TIMEOUT
	sctx, cancel := context.WithTimeout(context.Background(), cfg.GenTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
}
