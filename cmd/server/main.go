// cmd/server/main.go
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

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/licensegate/internal/commerce"
	"github.com/javajoker/licensegate/internal/config"
	"github.com/javajoker/licensegate/internal/database"
	"github.com/javajoker/licensegate/internal/i18n"
	"github.com/javajoker/licensegate/internal/metrics"
	"github.com/javajoker/licensegate/internal/payment"
	"github.com/javajoker/licensegate/internal/router"
	"github.com/javajoker/licensegate/internal/services"
	"github.com/javajoker/licensegate/internal/token"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	setupLogging(cfg.Logging, cfg.IsProduction())

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, err := buildServices(context.Background(), db, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize services")
	}

	// Initialize router
	r := router.Initialize(db, cfg, svc)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg config.LoggingConfig, production bool) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" || (cfg.Format == "" && production) {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func buildServices(ctx context.Context, db *gorm.DB, cfg *config.Config) (*router.Services, error) {
	secret, err := services.NewSecretService(db, cfg.Token.SigningSecret).SigningSecret(ctx)
	if err != nil {
		return nil, err
	}
	tokens := token.NewService(secret, cfg.Token.Issuer)

	storage, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}

	store := commerce.NewGormStore(db, cfg.Commerce.Subscriptions)
	registry := payment.NewRegistry()
	if cfg.Commerce.Enabled {
		processor := payment.NewCommerceProcessor(store, tokens, cfg.Commerce.CheckoutURL)
		if err := processor.Configure(map[string]string{"product_visibility": cfg.Commerce.ProductVisibility}); err != nil {
			return nil, err
		}
		registry.Register(processor)
	}
	if cfg.Stripe.SecretKey != "" {
		registry.Register(payment.NewStripeProcessor(cfg.Stripe.SecretKey, tokens, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL))
	}

	processors := services.NewProcessorService(db, registry)
	if err := processors.LoadPersistedConfig(ctx); err != nil {
		return nil, err
	}

	m := metrics.New()
	licenses := services.NewLicenseService(db, storage)
	accessTTL := time.Duration(cfg.Token.AccessTokenTTL) * time.Second

	return &router.Services{
		Licenses:      licenses,
		Authorization: services.NewAuthorizationService(licenses, registry, tokens, m, accessTTL),
		Processors:    processors,
		Admin:         services.NewAdminService(db),
		Storage:       storage,
		Orders:        store,
		Metrics:       m,
	}, nil
}
