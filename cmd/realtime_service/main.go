package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ridelink/internal/general/logger"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	maxConcurrent := flag.Int("max-concurrent", 1024, "maximum in-flight HTTP requests")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	log := logger.New("realtime-service")
	log.Info(ctx, "init_start", "Realtime Service initializing...", nil)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		log.Info(ctx, "shutdown_signal", "Shutdown signal received", nil)
		cancel()
	}()

	if err := run(ctx, *configPath, *maxConcurrent); err != nil {
		log.Error(ctx, "service_failed", "Realtime Service terminated with error", err, nil)
		os.Exit(1)
	}

	log.Info(context.Background(), "shutdown_complete", "Service stopped successfully", nil)
}
