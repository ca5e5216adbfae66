package main

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/wellsight/plunger-monitor/internal/fetcher"
	"github.com/wellsight/plunger-monitor/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting History Fetcher...")

	ctx := context.Background()

	// Connect to Redis for the session cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	var session *fetcher.SessionCache
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fmt.Printf("Redis unavailable, session caching disabled: %v\n", err)
	} else {
		session = fetcher.NewSessionCache(redisClient, cfg.OnPing.SessionTTL)
		fmt.Println("Connected to Redis")
	}

	// Authenticate against the remote source
	auth, err := fetcher.NewAuthManager(cfg.OnPing, session)
	if err != nil {
		log.Fatalf("Failed to create auth manager: %v", err)
	}
	if err := auth.Authenticate(ctx, false); err != nil {
		log.Fatalf("Authentication failed: %v", err)
	}

	// Fetch every configured well
	client := fetcher.NewClient(cfg.OnPing, auth, cfg.DataDir)
	if err := client.FetchAll(ctx, cfg.OnPing.WellsConfigFile); err != nil {
		log.Fatalf("Fetch failed: %v", err)
	}

	fmt.Println("\n✓ Fetch complete")
}
