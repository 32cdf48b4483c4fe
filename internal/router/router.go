// internal/router/router.go
package router

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/javajoker/licensegate/internal/config"
	"github.com/javajoker/licensegate/internal/database"
	"github.com/javajoker/licensegate/internal/handlers"
	"github.com/javajoker/licensegate/internal/metrics"
	"github.com/javajoker/licensegate/internal/middleware"
	"github.com/javajoker/licensegate/internal/services"
)

// Services are the wired application services the routes dispatch to.
type Services struct {
	Licenses      *services.LicenseService
	Authorization *services.AuthorizationService
	Processors    *services.ProcessorService
	Admin         *services.AdminService
	Storage       *services.StorageService
	Orders        handlers.OrderStore
	Metrics       *metrics.Metrics
}

func Initialize(db *gorm.DB, cfg *config.Config, svc *Services) *gin.Engine {
	// Initialize handlers
	licenseHandler := handlers.NewLicenseHandler(svc.Licenses)
	authorizationHandler := handlers.NewAuthorizationHandler(svc.Authorization)
	adminHandler := handlers.NewAdminHandler(svc.Admin, svc.Processors, svc.Orders)

	generalLimit := middleware.PerSecond(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	introspectLimit := middleware.PerSecond(cfg.RateLimit.IntrospectPerSecond, cfg.RateLimit.IntrospectBurst)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(generalLimit.Middleware())
	r.Use(middleware.AuditLogMiddleware(db))

	r.GET("/health", handlers.HealthCheck(func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}))
	if svc.Metrics != nil {
		r.GET("/metrics", gin.WrapH(svc.Metrics.Handler()))
	}

	// API v1 routes
	v1 := r.Group("/v1")
	{
		licenses := v1.Group("/licenses")
		{
			licenses.GET("", licenseHandler.ListLicenses)
			licenses.GET("/match", licenseHandler.MatchLicense)
			licenses.GET("/:id", licenseHandler.GetLicense)
			licenses.GET("/:id/xml", licenseHandler.GetLicenseXML)
			licenses.POST("/:id/checkout", authorizationHandler.Checkout)
			licenses.POST("/:id/token", authorizationHandler.IssueToken)
		}

		v1.POST("/token/introspect", introspectLimit.Middleware(), authorizationHandler.Introspect)

		v1.GET("/access",
			handlers.RequireQuery("url"),
			middleware.AccessTokenRequired(svc.Authorization, handlers.AccessTarget),
			authorizationHandler.Access,
		)

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminRequired(cfg.Admin.APIKey))
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)
			admin.GET("/audit-logs", adminHandler.GetAuditLogs)

			adminLicenses := admin.Group("/licenses")
			{
				adminLicenses.POST("", licenseHandler.CreateLicense)
				adminLicenses.PUT("/:id", licenseHandler.UpdateLicense)
				adminLicenses.DELETE("/:id", licenseHandler.DeleteLicense)
				adminLicenses.POST("/:id/publish", licenseHandler.PublishLicense)
			}

			processors := admin.Group("/processors")
			{
				processors.GET("", adminHandler.GetProcessors)
				processors.PUT("/:processor/config", adminHandler.UpdateProcessorConfig)
			}

			orders := admin.Group("/orders")
			{
				orders.GET("", adminHandler.GetOrders)
				orders.POST("", adminHandler.CreateOrder)
				orders.PUT("/:id/paid", adminHandler.MarkOrderPaid)
			}
		}
	}

	// Published documents when no bucket is configured
	if svc.Storage != nil && !svc.Storage.UsesS3() {
		r.Static("/published", cfg.AWS.LocalPublishDir)
	}

	return r
}
