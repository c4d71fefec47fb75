package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/rollingquote/app"
	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/handler"
	"github.com/AnTengye/rollingquote/middleware"
	"github.com/AnTengye/rollingquote/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Initialize services
	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	router := newRouter(cfg, a)

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "public_url", cfg.Server.PublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if err := a.Close(); err != nil {
		slog.Error("failed to close services", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

func newRouter(cfg *config.Config, a *app.App) *gin.Engine {
	authHandler := handler.NewAuthHandler(cfg)
	fileHandler := handler.NewFileHandler(a.Documents, a.Quotes, cfg.Minio.MaxObjectBytes)
	quoteHandler := handler.NewQuoteHandler(a.Quotes)
	checkoutHandler := handler.NewCheckoutHandler(a.Checkout)
	orderHandler := handler.NewOrderHandler(a.Orders)
	webhookHandler := handler.NewWebhookHandler(a.Reconciler)
	resendHandler := handler.NewResendHandler(a.Reconciler)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())              // Request ID for tracing
	router.Use(middleware.Recovery())               // Panic recovery
	router.Use(middleware.RequestLogger(a.Metrics)) // Access logging and latency
	router.Use(corsMiddleware())                    // CORS
	router.Use(cacheMiddleware())                   // Cache control

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst), authHandler.Login)
		// Payment events are authenticated by their signature, not a token.
		api.POST("/webhook/stripe", webhookHandler.HandleStripe)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	protected.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/files", fileHandler.Upload)
		protected.GET("/files/link", fileHandler.Link)
		protected.DELETE("/files", fileHandler.Delete)
		protected.POST("/quote", quoteHandler.Create)
		protected.POST("/checkout", checkoutHandler.Create)
		protected.GET("/orders/:id", orderHandler.Get)
		protected.POST("/resend", middleware.RequireRole(middleware.RoleAdmin), resendHandler.Resend)
	}

	return router
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// cacheMiddleware keeps API responses out of shared caches; quotes and
// orders are per-tenant.
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
