package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"freelance-market/internal/auth"
	"freelance-market/internal/config"
	"freelance-market/internal/database"
	"freelance-market/internal/handlers"
	"freelance-market/internal/jobs"
	"freelance-market/internal/notify"
	"freelance-market/internal/services"

	"github.com/nats-io/nats.go"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(database.GetDB(), cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize services
	svc := services.New(database.GetDB(), cfg.App.InitialCredit)
	svc.Auth.SetChallengeTTL(cfg.App.ChallengeTTL)

	// Notification delivery: in-app store, plus NATS when configured
	notifiers := notify.MultiNotifier{notify.NewStoreNotifier(svc.Notifications)}
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = notify.Connect(cfg.NATS.URL)
		if err != nil {
			log.Printf("Warning: NATS unavailable, notifications stay in-app only: %v", err)
		} else {
			notifiers = append(notifiers, notify.NewNATSNotifier(natsConn, cfg.NATS.SubjectPrefix))
			log.Printf("Publishing notifications to NATS at %s", cfg.NATS.URL)
		}
	}

	// Start outbox dispatcher
	var dispatcher *jobs.OutboxDispatcher
	if cfg.Outbox.Enabled {
		dispatcher = jobs.NewOutboxDispatcher(svc.Notifications, notifiers, jobs.DispatcherConfig{
			Consumer:      cfg.Outbox.Consumer,
			PollInterval:  cfg.Outbox.PollInterval,
			BatchSize:     cfg.Outbox.BatchSize,
			LeaseTTL:      cfg.Outbox.LeaseTTL,
			MaxAttempts:   cfg.Outbox.MaxAttempts,
			RetryBackoff:  cfg.Outbox.RetryBackoff,
			RetryMaxDelay: cfg.Outbox.RetryMaxDelay,
			Concurrency:   cfg.Outbox.Concurrency,
		})
		go dispatcher.Start()
	}

	// Set up router
	routerCfg := handlers.RouterConfig{AllowedOrigins: cfg.Server.AllowedOrigins}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	router := handlers.NewRouter(handlers.New(svc), routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if dispatcher != nil {
		dispatcher.Stop()
	}
	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			log.Printf("Warning: NATS drain failed: %v", err)
		}
	}

	log.Println("Server exited")
}
