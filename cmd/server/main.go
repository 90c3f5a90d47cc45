package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/stadtportal/be-mm-reports/internal/client"
	"github.com/stadtportal/be-mm-reports/internal/config"
	"github.com/stadtportal/be-mm-reports/internal/handler"
	"github.com/stadtportal/be-mm-reports/internal/metrics"
	"github.com/stadtportal/be-mm-reports/internal/platform/database"
	"github.com/stadtportal/be-mm-reports/internal/platform/logger"
	"github.com/stadtportal/be-mm-reports/internal/platform/middleware"
	"github.com/stadtportal/be-mm-reports/internal/repository"
	"github.com/stadtportal/be-mm-reports/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Maengelmelder Reports Service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	reportRepo := repository.NewReportRepository(db)
	ruleRepo := repository.NewRoutingRuleRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// NATS carries outbound notification events. Without a configured URL
	// the notifier runs in simulated mode, which is a full-featured setup
	// for local development.
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).
				Msg("NATS unavailable, notifications run in simulated mode")
			nc = nil
		} else {
			defer nc.Close()
			log.Info().Str("url", cfg.NATS.URL).Msg("Connected to NATS")
		}
	} else {
		log.Info().Msg("No NATS URL configured, notifications run in simulated mode")
	}

	notifier := client.NewNotifier(nc, cfg.Notify.Timeout, log.Logger)
	geocoder := client.NewGeocodingClient(cfg.Geocoding.BaseURL, cfg.Geocoding.UserAgent, cfg.Geocoding.Timeout, log.Logger)

	// Initialize services
	routingService := service.NewRoutingService(ruleRepo, log.With("routing"))
	reportService := service.NewReportService(reportRepo, routingService, auditRepo, notifier, log.With("reports"))

	if err := routingService.SeedDefaults(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed routing rules")
	}

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(reportService, routingService, geocoder, handler.RateLimit{
		MaxReports: cfg.RateLimit.MaxReportsPerWindow,
		Window:     cfg.RateLimit.Window,
	}, log)

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Public routes
	mux.HandleFunc("POST /api/v1/reports", httpHandler.CreateReport)
	mux.HandleFunc("GET /api/v1/reports/status/{ticketCode}", httpHandler.GetPublicStatus)

	// Admin routes
	adminAuth := middleware.BearerAuth(cfg.Admin.Token)
	admin := func(fn http.HandlerFunc) http.Handler { return adminAuth(fn) }

	mux.Handle("GET /api/v1/admin/reports", admin(httpHandler.ListReports))
	mux.Handle("GET /api/v1/admin/reports/export", admin(httpHandler.ExportReports))
	mux.Handle("GET /api/v1/admin/reports/{id}", admin(httpHandler.GetReport))
	mux.Handle("PATCH /api/v1/admin/reports/{id}/status", admin(httpHandler.ChangeStatus))
	mux.Handle("POST /api/v1/admin/reports/{id}/forward", admin(httpHandler.ForwardReport))
	mux.Handle("POST /api/v1/admin/reports/{id}/reforward", admin(httpHandler.ReforwardReport))
	mux.Handle("POST /api/v1/admin/reports/{id}/forward-auto", admin(httpHandler.AutoForwardReport))

	mux.Handle("GET /api/v1/admin/routing-rules", admin(httpHandler.ListRoutingRules))
	mux.Handle("POST /api/v1/admin/routing-rules", admin(httpHandler.CreateRoutingRule))
	mux.Handle("PUT /api/v1/admin/routing-rules/{id}", admin(httpHandler.UpdateRoutingRule))
	mux.Handle("DELETE /api/v1/admin/routing-rules/{id}", admin(httpHandler.DeleteRoutingRule))

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Retention sweeper
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Retention.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := reportService.SweepOldReports(gCtx, cfg.Retention.Days); err != nil {
					log.Error().Err(err).Msg("Retention sweep failed")
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
	}
	log.Info().Msg("Server stopped")
}
