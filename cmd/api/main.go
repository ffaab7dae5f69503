package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"card-rewards-api/internal/cache"
	"card-rewards-api/internal/config"
	"card-rewards-api/internal/database"
	"card-rewards-api/internal/events"
	"card-rewards-api/internal/features"
	"card-rewards-api/internal/handler"
	"card-rewards-api/internal/middleware"
	"card-rewards-api/internal/service"
	"card-rewards-api/internal/tracing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "card-rewards-api",
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Pick a cache backend. Redis when configured, in-process otherwise.
	var c cache.Cache
	if cfg.Cache.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		c = redisCache
		log.Printf("Cache: redis (%s)", cfg.Cache.RedisAddr)
	} else {
		c = cache.NewInMemoryCache()
		log.Printf("Cache: in-memory")
	}

	// Feature flags
	ff := features.NewManager()
	if !cfg.Cache.Enabled {
		ff.Disable(features.FeatureCacheEnabled)
		ff.Disable(features.FeatureRankingCache)
	}
	defer ff.Shutdown()

	// Event hooks
	ev := events.NewManager(ff.IsEnabled(features.FeatureEventHooksEnabled))
	ev.Subscribe(events.EventCardUpdated, func(ctx context.Context, e events.Event) error {
		if data, ok := e.Data.(events.CardUpdatedData); ok {
			log.Printf("card updated: %s", data.Card.ID)
		}
		return nil
	})
	ev.Subscribe(events.EventCardDeleted, func(ctx context.Context, e events.Event) error {
		if data, ok := e.Data.(events.CardDeletedData); ok {
			log.Printf("card deleted: %s", data.CardID)
		}
		return nil
	})
	defer ev.Shutdown()

	// Initialize service and handlers
	svc := service.NewService(db, c, time.Duration(cfg.Cache.TTLSeconds)*time.Second, ev, ff)
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
	defer rateLimiter.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.Tracing.Enabled {
		r.Use(middleware.TracingMiddleware())
	}

	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	r.Route("/cards", func(r chi.Router) {
		r.Post("/", h.SaveCard)
		r.Get("/", h.ListCards)
		r.Get("/{card_id}", h.GetCard)
		r.Delete("/{card_id}", h.DeleteCard)
	})

	r.Post("/calculate", h.Calculate)

	r.Route("/rankings", func(r chi.Router) {
		r.Get("/", h.ListRankings)
		r.Get("/{category_id}", h.GetRanking)
	})

	r.Get("/categories", h.ListCategories)
	r.Get("/health", h.Health)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting HTTP server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)
	if cfg.RateLimit.Enabled {
		log.Printf("Rate limit: %d requests per %d seconds", cfg.RateLimit.Rate, cfg.RateLimit.Window)
	}

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
