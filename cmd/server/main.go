package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/pizza-service/internal/auth"
	"github.com/iliyamo/pizza-service/internal/config"
	"github.com/iliyamo/pizza-service/internal/database"
	"github.com/iliyamo/pizza-service/internal/handler"
	"github.com/iliyamo/pizza-service/internal/logger"
	"github.com/iliyamo/pizza-service/internal/queue"
	"github.com/iliyamo/pizza-service/internal/repository"
	"github.com/iliyamo/pizza-service/internal/router"
	"github.com/iliyamo/pizza-service/internal/service"
)

const (
	sessionPurgeInterval = 10 * time.Minute
	shutdownTimeout      = 10 * time.Second
	orderLogDir          = "logs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		zl.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.Bootstrap(ctx, db); err != nil {
		zl.Fatal("schema bootstrap failed", zap.Error(err))
	}

	users := repository.NewUserRepo(db, cfg.BcryptCost)
	if err := service.EnsureAdmin(ctx, users, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword, zl); err != nil {
		zl.Fatal("seed admin failed", zap.Error(err))
	}

	// Redis is optional: nil disables cache and rate limiting.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		zl.Warn("redis unavailable, cache and rate limiting disabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer rdb.Close()
	}

	store := sessionStore(cfg, db, rdb, zl)
	if p, ok := store.(auth.Purger); ok {
		go auth.RunJanitor(ctx, p, sessionPurgeInterval, zl)
	}
	authority := auth.NewAuthority(cfg, store)

	var pub handler.OrderPublisher = service.NopPublisher{}
	if cfg.OrderEventsEnabled {
		pub = service.NewPublisher(cfg.AMQPURL, zl)
		consumer := &queue.Consumer{URL: cfg.AMQPURL, LogDir: orderLogDir, Log: zl}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("order consumer stopped", zap.Error(err))
			}
		}()
	}

	e := router.New(router.Deps{
		Config:     cfg,
		Log:        zl,
		DB:         db,
		Redis:      rdb,
		Guard:      auth.NewGuard(cfg, authority),
		Auth:       handler.NewAuthHandler(users, authority),
		Users:      handler.NewUserHandler(users, authority),
		Franchises: handler.NewFranchiseHandler(repository.NewFranchiseRepo(db)),
		Orders:     handler.NewOrderHandler(repository.NewMenuRepo(db), repository.NewOrderRepo(db), pub, zl),
	})

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("session_store", cfg.SessionStore))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}

// sessionStore picks the liveness backend named by SESSION_STORE.  A
// redis store without a reachable server falls back to memory.
func sessionStore(cfg config.Config, db *sql.DB, rdb *redis.Client, zl *zap.Logger) auth.LivenessStore {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		if rdb != nil {
			return auth.NewRedisStore(rdb, "session")
		}
		zl.Warn("SESSION_STORE=redis but redis is unavailable, using memory")
		return auth.NewMemoryStore()
	case config.SessionStoreMemory:
		return auth.NewMemoryStore()
	default:
		return repository.NewTokenRepo(db)
	}
}
