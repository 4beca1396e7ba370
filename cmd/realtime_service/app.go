package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"ridelink/internal/general/config"
	"ridelink/internal/general/jwt"
	"ridelink/internal/general/logger"
	"ridelink/internal/general/postgres"
	"ridelink/internal/general/rabbitmq"
	"ridelink/internal/location"
	"ridelink/internal/realtime/dispatch"
	"ridelink/internal/realtime/httpapi"
	"ridelink/internal/realtime/notify"
	"ridelink/internal/realtime/presence"
	"ridelink/internal/realtime/rooms"
	"ridelink/internal/realtime/websocket"
)

// run wires the realtime service and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string, maxConcurrent int) error {
	// static request ID for startup logs
	log := logger.New("realtime-service")
	ctx = log.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}
	log.Info(ctx, "config_loaded", "Configuration loaded successfully", nil)

	// connect to RabbitMQ (notification bridge + location fanout)
	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()
	pub := rabbitmq.NewMQPublisher(rmq)

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	// shared realtime state
	registry := presence.NewRegistry()
	roomIndex := rooms.NewManager()
	dispatcher := dispatch.New(registry, roomIndex, log).WithPublisher(pub)

	// optional location history archive
	if cfg.History.Enabled {
		pool, err := postgres.NewPool(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
			return err
		}
		defer pool.Close()

		archiver := postgres.NewHistoryArchiver(pool, log)
		archiver.Start(ctx)
		defer archiver.Wait()
		dispatcher = dispatcher.WithArchiver(archiver)
	}

	// optional directions provider with optional redis cache
	var provider location.Provider
	if cfg.ProviderEnabled() {
		var cache *location.Cache
		if cfg.RedisEnabled() {
			cache = location.NewCache(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		}
		client := location.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.ProviderTimeout(), cache, log)
		defer client.Close()
		provider = client
	}
	locations := location.NewService(provider, cfg.ProviderTimeout(), log)

	// bridge server-initiated notifications into live sessions
	notify.NewConsumer(rmq, dispatcher, log).Start(ctx)

	// HTTP surface
	mux := http.NewServeMux()
	wsHandler := websocket.NewHandler(log, jwtManager, dispatcher)
	httpHandler := httpapi.NewHandler(log, jwtManager, registry, locations, wsHandler)
	httpHandler.RegisterRoutes(mux)

	// concurrency limiter (global) — blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebSocket.Port),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log.Info(ctx, "service_started",
		fmt.Sprintf("Realtime Service started on port %d", cfg.WebSocket.Port),
		map[string]any{"port": cfg.WebSocket.Port, "max_concurrent": maxConcurrent},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		// graceful HTTP shutdown on context cancel
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info(ctx, "shutdown_started", "Starting graceful shutdown", nil)
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "http_server_error", "HTTP server terminated with error", err,
				map[string]any{"port": cfg.WebSocket.Port})
			return err
		}
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
// WebSocket connections hold a slot for their whole lifetime, so the limit
// is also the connection cap.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
