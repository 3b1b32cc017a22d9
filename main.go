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

	"ms-admission/internal/analytics"
	analytics_api "ms-admission/internal/analytics/api"
	"ms-admission/internal/auth"
	"ms-admission/internal/checkout"
	"ms-admission/internal/checkout/checkout_api"
	"ms-admission/internal/config"
	"ms-admission/internal/database"
	"ms-admission/internal/database/migrations"
	"ms-admission/internal/kafka"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	handlers "ms-admission/internal/payment/handler"
	"ms-admission/internal/payment/services"
	"ms-admission/internal/payment/webhook"
	"ms-admission/internal/sse"
	"ms-admission/internal/tickets/codegen"
	"ms-admission/internal/tickets/db"
	qr "ms-admission/internal/tickets/qr_generator"
	tickets "ms-admission/internal/tickets/service"
	"ms-admission/internal/tickets/ticket_api"
	"ms-admission/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
)

type paymentProcessor interface {
	checkout.PaymentProcessor
	analytics.SessionLister
}

// dependencies are the connections the server is assembled from.
type dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *bun.DB
	RoleCache auth.RoleCache
	Verifier  auth.Verifier
	Processor paymentProcessor
	Publisher tickets.EventPublisher
	Emitter   *sse.AttendanceEmitter
	Clock     utils.Clock
}

type server struct {
	Router     http.Handler
	Reconciler *analytics.Reconciler
}

func assemble(d dependencies) *server {
	cfg := d.Config
	store := db.New(d.DB, cfg.Database.StoreTimeout)
	codes := codegen.New(cfg.Tickets.CodeLength, cfg.Tickets.CodeMaxAttempts)

	ticketService := tickets.NewTicketService(store, codes, d.Publisher, d.Clock, d.Logger)
	checkoutService := checkout.NewService(store, d.Processor, d.Clock, d.Logger, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
	reconciler := analytics.NewReconciler(d.Processor, store, d.Clock, d.Logger, cfg.Reconciliation.Lookback)
	directory := auth.NewStaffDirectory(store, d.RoleCache, d.Logger)

	checkoutHandler := checkout_api.NewHandler(checkoutService, d.Logger)
	ticketHandler := ticket_api.NewHandler(ticketService, qr.NewQRGenerator(cfg.Tickets.PublicBaseURL), d.Logger)
	stripeHandler := handlers.NewStripeHandler(webhook.NewIngester(ticketService, cfg.Stripe.WebhookSecret, d.Logger), d.Logger)
	streamHandler := sse.NewHandler(d.Emitter, store, d.Logger)
	analyticsHandler := analytics_api.NewHandler(reconciler, d.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(d.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), cfg.Database.StoreTimeout)
		defer cancel()
		if err := d.DB.PingContext(ctx); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/admission", func(r chi.Router) {
		// Buyers and the processor call these without a staff token.
		checkoutHandler.RegisterRoutes(r)
		stripeHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(d.Verifier, directory, d.Logger))

			ticketHandler.RegisterRoutes(r)
			r.Get("/events/{eventId}/attendance/stream", streamHandler.StreamAttendance)

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleAdmin))
				ticketHandler.RegisterAdminRoutes(r)
				analyticsHandler.RegisterRoutes(r)
			})
		})
	})

	return &server{Router: r, Reconciler: reconciler}
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	if cfg.OIDCIssuer != "" {
		return auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	}
	return auth.NewHMACVerifier(cfg.JWTSecret, ""), nil
}

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Dir)
	defer log.Close()
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))

	log.Info("APP", "Starting admission service")
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid configuration: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
	}

	var roleCache auth.RoleCache
	redisClient, err := auth.InitializeRoleCache(ctx, cfg.Redis.Addr, log)
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("Role cache disabled: %v", err))
	} else {
		defer redisClient.Close()
		roleCache = auth.NewRedisRoleCache(redisClient, cfg.Redis.RoleCacheTTL)
	}

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Token verifier: %v", err))
	}

	stripeService, err := services.NewStripeService(cfg.Stripe.SecretKey, cfg.Stripe.ProcessorTimeout, log)
	if err != nil {
		log.Fatal("STRIPE", err.Error())
	}

	emitter := sse.NewAttendanceEmitter()
	var publisher tickets.EventPublisher = sse.LocalPublisher{Emitter: emitter}

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.TopicNames(cfg.Kafka.Topics), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		publisher = kafka.NewTicketEvents(producer, cfg.Kafka.Topics)

		// Each replica reads under its own group so its streams see every
		// check-in, not one partition's share.
		groupID := cfg.Kafka.GroupID
		if host, err := os.Hostname(); err == nil {
			groupID += "-" + host
		}
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketCheckedIn, groupID, log)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx, emitter.Emit); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Check-in consumer stopped: %v", err))
			}
		}()
	}

	srv := assemble(dependencies{
		Config:    cfg,
		Logger:    log,
		DB:        bunDB,
		RoleCache: roleCache,
		Verifier:  verifier,
		Processor: stripeService,
		Publisher: publisher,
		Emitter:   emitter,
		Clock:     utils.SystemClock(),
	})

	go srv.Reconciler.Run(ctx, cfg.Reconciliation.Interval)

	httpServer := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      srv.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Admission service listening on %s", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP", fmt.Sprintf("HTTP server error: %v", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
		os.Exit(1)
	}
	log.Info("HTTP", "Admission service shutdown complete")
}
