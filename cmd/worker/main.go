package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/callrescue/callrescue/internal/config"
	"github.com/callrescue/callrescue/services"
	"github.com/callrescue/callrescue/workers"
)

func main() {
	log.Println("Starting workers...")

	configPath := os.Getenv("CALLRESCUE_CONFIG_PATH")
	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if config.App.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable (or config) is required")
	}

	pg, err := sql.Open("postgres", config.App.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	if err := pg.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Keep all timestamp math in UTC
	if _, err := pg.Exec("SET TIME ZONE 'UTC'"); err != nil {
		log.Printf("Failed to set timezone to UTC: %v", err)
	}

	log.Println("Connected to database successfully")

	var rdb *redis.Client
	if config.App.RedisURL != "" {
		opts, err := redis.ParseURL(config.App.RedisURL)
		if err != nil {
			log.Printf("Warning: invalid REDIS_URL, running without redis: %v", err)
		} else {
			rdb = redis.NewClient(opts)
		}
	}

	pushService, err := services.NewPushService(pg)
	if err != nil {
		log.Printf("Warning: push service unavailable: %v", err)
	}
	sender := services.NewGatewaySender()
	notificationService := services.NewNotificationService(pg, rdb, sender, pushService)

	worker := workers.NewSweepWorker(pg, notificationService)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.StartQueueWorker(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.StartRetryWorker(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.StartEscalationWorker(ctx)
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	log.Println("Workers started successfully. Press Ctrl+C to stop.")
	<-c

	log.Println("Shutting down workers...")
	cancel()
	wg.Wait()
}
