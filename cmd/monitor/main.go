package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/keel/internal/config"
	"github.com/dyluth/keel/internal/drift"
	"github.com/dyluth/keel/internal/learning"
	"github.com/dyluth/keel/internal/resolution"
	"github.com/dyluth/keel/internal/truth"
	"github.com/dyluth/keel/internal/verify"
	"github.com/dyluth/keel/pkg/ledger"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Locate configuration
	configPath := os.Getenv("KEEL_CONFIG")
	if configPath == "" {
		configPath = "keel.yml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", configPath, err)
		os.Exit(1)
	}

	// 2. Resolve Redis connection; REDIS_URL overrides keel.yml
	redisOpts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisOpts, err = redis.ParseURL(redisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
			os.Exit(1)
		}
	}

	// 3. Create ledger client
	client, err := ledger.NewClient(redisOpts, cfg.Project.Name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create ledger client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// 4. Verify Redis connectivity
	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Drift monitor starting for project '%s' (interval %s, sample window %d)\n",
		cfg.Project.Name, cfg.Interval(), cfg.Monitoring.SampleWindow)

	// 5. Assemble the detection pipeline
	engine := verify.NewEngine(client, truth.NewStore(client), learning.NewSystem(client))
	coordinator := resolution.NewCoordinator(client, cfg.Stakeholders)
	detector := drift.NewDetector(client, engine, coordinator, cfg.Monitoring.SampleWindow)

	// 6. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 7. Start monitoring
	if err := detector.StartMonitoring(runCtx, cfg.Interval()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start monitoring: %v\n", err)
		os.Exit(1)
	}

	// 8. Wait for shutdown signal
	sig := <-sigCh
	fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
	detector.StopMonitoring()

	fmt.Println("Drift monitor stopped")
}
