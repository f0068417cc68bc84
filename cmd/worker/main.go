package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-engine/internal/config"
	"github.com/ignite/outreach-engine/internal/content"
	"github.com/ignite/outreach-engine/internal/drip"
	"github.com/ignite/outreach-engine/internal/pkg/distlock"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
	"github.com/ignite/outreach-engine/internal/store"
	"github.com/ignite/outreach-engine/internal/tracking"
	"github.com/ignite/outreach-engine/internal/transport"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database ping failed: %v", err)
	}
	pingCancel()

	st := store.NewStore(db)
	if err := st.Migrate(context.Background()); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}

	// Redis is optional. Without it the batch lease falls back to a PG
	// advisory lock, which is still correct for a single database.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.URL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		redisPing, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(redisPing).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v, using PG advisory locks", cfg.Redis.URL, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s", cfg.Redis.URL)
		}
		cancel()
	}

	lock := distlock.NewLock(redisClient, db, "outreach:drip:batch", 10*time.Minute)

	generator := content.NewGenerator(cfg.Generator)
	screener := content.NewScreener(cfg.Screener)
	pipeline := content.NewPipeline(generator, screener, cfg.Drip.MaxAttempts)

	var sender transport.Sender
	if cfg.SES.Enabled {
		sender = transport.NewSESSender(cfg.SES)
	} else {
		log.Println("SES disabled, outbound messages will be logged only")
		sender = transport.NewLogSender()
	}

	embedder := tracking.NewEmbedder(cfg.Tracking.BaseURL, cfg.Tracking.SigningKey)
	engine := drip.NewEngine(st, pipeline, sender, embedder, lock, cfg.Drip)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		log.Fatalf("Failed to start drip engine: %v", err)
	}
	logger.Info("drip worker started",
		"daily_limit", cfg.Drip.DailyLimit,
		"batch_cap", cfg.Drip.BatchCap)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Println("Shutting down...")
	engine.Stop()
	cancel()
	db.Close()
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("Worker stopped")
}
