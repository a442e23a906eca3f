package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modbot/internal/analytics"
	"modbot/internal/audit"
	"modbot/internal/bot"
	"modbot/internal/config"
	"modbot/internal/prompt"
	"modbot/internal/storage"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	auditLogger := audit.NewLogger(store, logger.Named("audit"))
	analyticsEngine := analytics.New(store)

	var (
		prompts    prompt.Store
		redisStore *prompt.RedisStore
	)
	if cfg.Prompts.RedisURL != "" {
		client, err := prompt.Connect(cfg.Prompts.RedisURL)
		if err != nil {
			logger.Fatal("redis init failed", zap.Error(err))
		}
		redisStore = prompt.NewRedisStore(client)
		defer redisStore.Close()
		prompts = redisStore
		logger.Info("prompt store", zap.String("backend", "redis"))
	} else {
		prompts = prompt.NewMemoryStore()
		logger.Info("prompt store", zap.String("backend", "memory"))
	}

	botSvc, err := bot.New(cfg, logger, store, auditLogger, analyticsEngine, prompts)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			if redisStore != nil {
				if err := redisStore.Ping(ctx); err != nil {
					http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
					return
				}
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
