package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"huduma-svc/cache"
	"huduma-svc/cart"
	"huduma-svc/catalog"
	"huduma-svc/checkout"
	"huduma-svc/database"
	"huduma-svc/handlers"
	"huduma-svc/kafka"
	"huduma-svc/middleware"
	"huduma-svc/mpesa"
	"huduma-svc/notify"
	"huduma-svc/orders"
	"huduma-svc/pricing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis (catalog cache); the service degrades gracefully
	// without it.
	rdb, err := cache.InitRedis(logger)
	if err != nil {
		logger.Warn("Redis unavailable, catalog caching disabled", zap.Error(err))
		rdb = nil
	}

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("huduma-svc")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Wire the core
	hub := notify.NewHub(logger)
	catalogStore := catalog.NewStore(db, rdb, logger)
	cartMgr := cart.NewManager(db, catalogStore, hub, producer, logger)
	pricingEngine := pricing.NewEngine(catalogStore)
	initiator := mpesa.NewClient(logger)
	registry := orders.NewRegistry(db, hub, producer, logger)
	orchestrator := checkout.NewOrchestrator(db, cartMgr, pricingEngine, initiator, hub, producer, logger)

	// Initialize Kafka consumer for payment results
	consumer, err := kafka.InitConsumer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	go func() {
		if err := kafka.StartConsumer(consumer, registry, logger); err != nil {
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("huduma-svc"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	authHandler := handlers.NewAuthHandler(db, logger)
	cartHandler := handlers.NewCartHandler(cartMgr, logger)
	checkoutHandler := handlers.NewCheckoutHandler(orchestrator, logger)
	orderHandler := handlers.NewOrderHandler(registry, logger)
	serviceHandler := handlers.NewServiceHandler(catalogStore, logger)
	eventsHandler := handlers.NewEventsHandler(hub, logger)

	api := router.Group("/api")
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.AuthRequired())
	authed.GET("/services/:category", serviceHandler.GetServicesByCategory)
	authed.POST("/cart", cartHandler.AddToCart)
	authed.GET("/cart", cartHandler.GetCart)
	authed.DELETE("/cart/:id", cartHandler.RemoveFromCart)
	authed.POST("/checkout", checkoutHandler.Checkout)
	authed.GET("/orders", orderHandler.GetOrders)
	authed.GET("/orders/my", orderHandler.GetMyOrders)
	authed.GET("/orders/:id", orderHandler.GetOrder)
	authed.PATCH("/orders/:id", orderHandler.UpdateOrderStatus)
	authed.GET("/events", eventsHandler.Stream)

	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Huduma service started", zap.String("addr", srv.Addr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
