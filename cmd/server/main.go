package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"healthplan_billing/internal/config"
	"healthplan_billing/internal/gateway"
	"healthplan_billing/internal/handlers"
	appMiddleware "healthplan_billing/internal/middleware"
	"healthplan_billing/internal/repository"
	"healthplan_billing/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg := config.Load()

	// Refuse to boot with incomplete gateway credentials rather than
	// sign requests with a missing or placeholder secret.
	if err := cfg.Gateway.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Authenticated endpoints will reject requests until valid credentials are provided")
	}

	// Initialize Database. Payments require durable storage; there is
	// no in-memory fallback.
	if cfg.Server.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	db, err := services.InitDB(cfg.Server.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis is optional; without it plan lookups read through to the DB.
	var cache *services.RedisCache
	if cfg.Server.RedisURL != "" {
		cache, err = services.NewRedisCache(cfg.Server.RedisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	}

	// Repositories and services
	paymentRepo := repository.NewPaymentRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	planRepo := repository.NewPlanRepository(db)

	gatewayClient := gateway.NewClient(cfg.Gateway)
	catalog := services.NewCatalogService(planRepo, cache)
	subscriptionService := services.NewSubscriptionService(subscriptionRepo)
	orderService := services.NewOrderService(cfg.Gateway, paymentRepo, catalog, gatewayClient)
	callbackService := services.NewCallbackService(cfg.Gateway, paymentRepo, subscriptionService)
	refundService := services.NewRefundService(cfg.Gateway, paymentRepo, subscriptionRepo, gatewayClient)

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(orderService, callbackService, refundService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)

	// Webhook endpoint is public: the gateway authenticates itself with
	// the payload checksum, not a user token.
	e.POST("/api/payments/callback", paymentHandler.HandleCallback)

	// Authenticated routes
	api := e.Group("/api")
	api.Use(appMiddleware.RequireAuth(authClient))
	api.POST("/payments/orders", paymentHandler.CreateOrder)
	api.POST("/payments/refunds", paymentHandler.Refund)
	api.GET("/payments/orders/:orderId/status", paymentHandler.OrderStatus)
	api.GET("/subscriptions/me", subscriptionHandler.Current)

	// Start server
	log.Printf("Server starting on port %s", cfg.Server.Port)
	e.Logger.Fatal(e.Start(":" + cfg.Server.Port))
}
