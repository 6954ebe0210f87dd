package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"coursetrack/internal/attendance"
	"coursetrack/internal/cache"
	"coursetrack/internal/config"
	"coursetrack/internal/queue"
	"coursetrack/internal/store"
)

// Worker consumes ledger events and refreshes cached lecture summaries.
func main() {
	cfg := config.Load()
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("invalid worker config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	records := attendance.NewRepository(db.Client)

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis not available at %s, will keep retrying", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, "")
	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	summaries := cache.NewSummaries(redisClient.Client, "", cfg.SummaryTTL)

	log.Println("worker started, waiting for messages...")
	cache.NewRefresher(records, summaries).Run(ctx, messages)
	log.Println("worker stopped")
}
