package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"slimfile/pkg/cache"
	"slimfile/pkg/config"
	"slimfile/pkg/remote"
	"slimfile/pkg/server"
)

func main() {
	// Load config.yml
	cfg, err := config.LoadConfig("config.yml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load .env for secrets
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	// Result cache is optional; without REDIS_URL every request recomputes.
	var resultCache *cache.Cache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		resultCache, err = cache.NewRedisCache(redisURL, cfg.Cache.KeyPrefix)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer resultCache.Close()
		log.Println("Result cache enabled")
	} else {
		log.Println("REDIS_URL not set, result caching disabled")
	}

	// Remote compression is optional as well.
	var remoteClient *remote.Client
	if remoteURL := os.Getenv("REMOTE_API_URL"); remoteURL != "" {
		remoteClient = remote.NewClient(remoteURL, os.Getenv("REMOTE_API_KEY"))
		remoteClient.SetPollInterval(time.Duration(cfg.Remote.PollIntervalSeconds * float64(time.Second)))
		log.Printf("Remote compression enabled via %s", remoteURL)
	} else {
		log.Println("REMOTE_API_URL not set, remote compression disabled")
	}

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.New(cfg, resultCache, remoteClient).Handler(),
	}

	go func() {
		log.Printf("slimfile listening on %s", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for termination signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
