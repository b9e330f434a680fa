// main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-ecommerce-delivery/cache"
	"go-ecommerce-delivery/config"
	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/metrics"
	"go-ecommerce-delivery/middleware"
	"go-ecommerce-delivery/routes"
	"go-ecommerce-delivery/services"
	"go-ecommerce-delivery/storage"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() { _ = log.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("Invalid timezone", zap.Error(err))
	}

	ctx := context.Background()

	// Entity store
	var st *store.Store
	switch cfg.App.StoreDriver {
	case "memory":
		log.Warn("Using in-memory store; data is lost on restart")
		st = store.NewMemory()
	default:
		client, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error("Failed to disconnect from MongoDB", zap.Error(err))
			}
		}()
		db := client.Database(cfg.Mongo.Database)
		idxCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
		err = store.EnsureIndexes(idxCtx, db)
		cancel()
		if err != nil {
			log.Fatal("Failed to create indexes", zap.Error(err))
		}
		st = store.NewMongo(db)
		log.Info("Connected to MongoDB", zap.String("database", cfg.Mongo.Database))
	}

	// Webhook deduplication
	var idem cache.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisStore, err := cache.NewRedisIdempotencyStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		idem = redisStore
		log.Info("Using Redis for webhook deduplication", zap.String("addr", cfg.Redis.Addr))
	} else {
		idem = cache.NewInMemoryIdempotencyStore()
	}
	defer func() { _ = idem.Close() }()

	// File storage
	blobs, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialise file storage", zap.Error(err))
	}

	m := metrics.New()
	tokens := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration)

	svc := services.New(services.Deps{
		Store:       st,
		Blobs:       blobs,
		Idempotency: idem,
		Tokens:      tokens,
		Metrics:     m,
		Location:    loc,
		DedupeTTL:   cfg.Webhook.DedupeTTL,
		OtpTTL:      cfg.Otp.TTL,
	})

	if cfg.Admin.BootstrapEmail != "" {
		if err := svc.Auth.PromoteAdmin(ctx, cfg.Admin.BootstrapEmail); err != nil {
			log.Warn("Admin bootstrap skipped", zap.String("email", cfg.Admin.BootstrapEmail), zap.Error(err))
		} else {
			log.Info("Admin bootstrap applied", zap.String("email", cfg.Admin.BootstrapEmail))
		}
	}

	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst)
	if err := authLimiter.TrustProxies(cfg.RateLimit.TrustedProxies); err != nil {
		log.Fatal("Invalid AUTH_TRUSTED_PROXIES", zap.Error(err))
	}

	opts := routes.Options{
		Authenticator: svc.Auth,
		Logger:        log,
		Metrics:       m,
		AuthLimiter:   authLimiter,
	}
	if local, ok := blobs.(*storage.LocalStorage); ok {
		opts.Uploads = local
		opts.UploadsURL = cfg.Storage.PublicBaseURL
	}
	handler := routes.NewRouter(routes.NewControllers(svc), opts)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-quit.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}
