package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/Rizwan0994/haul-connect-sub002/internal/client"
	"github.com/Rizwan0994/haul-connect-sub002/internal/config"
	"github.com/Rizwan0994/haul-connect-sub002/internal/database"
	"github.com/Rizwan0994/haul-connect-sub002/internal/handler"
	"github.com/Rizwan0994/haul-connect-sub002/internal/logger"
	"github.com/Rizwan0994/haul-connect-sub002/internal/middleware"
	"github.com/Rizwan0994/haul-connect-sub002/internal/repository"
	"github.com/Rizwan0994/haul-connect-sub002/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("environment", cfg.Service.Environment).
		Msg("Starting approval workflow service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnLife: cfg.Database.MaxConnLife,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Repositories
	entityRepo := repository.NewEntityRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Permission gate, optionally fronted by a Redis grant cache
	var gate service.PermissionGate = client.NewPermissionHTTPClient(
		cfg.Clients.PermissionsURL, cfg.Clients.PermissionsTimeout)
	if cfg.Clients.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Clients.RedisAddr,
			Password: cfg.Clients.RedisPassword,
		})
		defer rdb.Close()
		gate = client.NewCachedPermissionGate(gate, rdb, cfg.Clients.PermissionCacheTTL, log.Logger)
		log.Info().Str("redis", cfg.Clients.RedisAddr).Msg("Permission grant cache enabled")
	}

	// Notification publisher (optional)
	var emitter service.NotificationEmitter
	if cfg.Clients.NATSURL != "" {
		publisher, err := client.NewNotificationPublisher(cfg.Clients.NATSURL, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer publisher.Close()
		emitter = publisher
		log.Info().Str("nats", cfg.Clients.NATSURL).Msg("Notification publisher connected")
	}

	// Services
	workflowService := service.NewWorkflowService(entityRepo, auditRepo, gate, emitter, log)
	commissionService := service.NewCommissionService(entityRepo, gate, emitter, log)

	// HTTP routes
	httpHandler := handler.NewHTTPHandler(workflowService, commissionService, log)
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/api/v1/workflow/entities", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			httpHandler.RegisterEntity(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/workflow/entities/get", requireMethod(http.MethodGet, httpHandler.GetEntity))
	mux.HandleFunc("/api/v1/workflow/approve-manager", requireMethod(http.MethodPost, httpHandler.ApproveAsManager))
	mux.HandleFunc("/api/v1/workflow/approve-accounts", requireMethod(http.MethodPost, httpHandler.ApproveAsAccounts))
	mux.HandleFunc("/api/v1/workflow/reject", requireMethod(http.MethodPost, httpHandler.Reject))
	mux.HandleFunc("/api/v1/workflow/disable", requireMethod(http.MethodPost, httpHandler.Disable))
	mux.HandleFunc("/api/v1/workflow/enable", requireMethod(http.MethodPost, httpHandler.Enable))
	mux.HandleFunc("/api/v1/workflow/history", requireMethod(http.MethodGet, httpHandler.GetHistory))
	mux.HandleFunc("/api/v1/carriers/load-completed", requireMethod(http.MethodPost, httpHandler.LoadCompleted))
	mux.HandleFunc("/api/v1/carriers/commission/paid", requireMethod(http.MethodPost, httpHandler.MarkPaid))

	// Middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.RequestTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}
