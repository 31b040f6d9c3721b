package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"paygate_app_echo/internal/gateway"
	"paygate_app_echo/internal/handlers"
	appMiddleware "paygate_app_echo/internal/middleware"
	"paygate_app_echo/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Authenticated endpoints will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis (optional; the unique index covers dedup without it)
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	} else {
		log.Println("Warning: REDIS_URL not set, running without cache")
	}

	siteURL := os.Getenv("SITE_URL")
	if siteURL == "" {
		siteURL = "http://127.0.0.1:8080"
	}

	// Wire the payment core
	gateways := gateway.NewRegistry(
		gateway.NewBkashGateway(),
		gateway.NewNagadGateway(),
	)
	paymentService := services.NewPaymentService(db, cache)
	webhookService := services.NewWebhookService(db, paymentService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, webhookService, gateways, siteURL)

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = appMiddleware.JSONErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Gateway callbacks authenticate via signature, not user session
	e.POST("/api/payments/webhook", paymentHandler.Webhook)

	// Protected routes
	api := e.Group("/api")
	api.Use(appMiddleware.RequireAuth(authClient, db, cache))
	api.POST("/payments", paymentHandler.CreatePayment)
	api.GET("/payments/status", paymentHandler.Status)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
