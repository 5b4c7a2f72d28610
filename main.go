// main.go
package main

import (
	"log"
	"os"
	"time"

	"songquiz/database"
	"songquiz/handlers"
	"songquiz/middleware"
	"songquiz/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	validateEnvironment()

	// Initialize database
	database.InitDB()
	defer database.CloseDB()

	// Background sweep of abandoned rooms
	cleanup := services.GetCleanupService()
	cleanup.Start()
	defer cleanup.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024, // 1MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	// CORS configuration
	corsOrigins := os.Getenv("CORS_ORIGINS")
	if corsOrigins == "" {
		corsOrigins = "http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	app.Use(middleware.RateLimitMiddleware())

	// API Routes
	api := app.Group("/api")

	// Auth routes with stricter rate limiting
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.AuthRateLimitMiddleware())
	authGroup.Post("/guest", handlers.GuestLogin)
	authGroup.Post("/login", handlers.Login)
	authGroup.Post("/register", handlers.Register)
	authGroup.Get("/me", middleware.AuthMiddleware, handlers.Me)

	// Room lifecycle routes
	roomGroup := api.Group("/rooms")
	roomGroup.Use(middleware.AuthMiddleware)
	roomGroup.Get("/", handlers.ListRooms)
	roomGroup.Post("/", handlers.CreateRoom)
	roomGroup.Post("/join", handlers.JoinRoom)
	roomGroup.Get("/mine", handlers.GetMyRoom)
	roomGroup.Post("/reset", handlers.ResetParticipations)
	roomGroup.Get("/:id", handlers.GetRoomState)
	roomGroup.Post("/:id/leave", handlers.LeaveRoom)
	roomGroup.Post("/:id/leave-finished", handlers.LeaveFinishedRoom)
	roomGroup.Post("/:id/ready", handlers.ToggleReady)
	roomGroup.Post("/:id/kick", handlers.KickParticipant)
	roomGroup.Post("/:id/restart", handlers.RestartRoom)
	roomGroup.Post("/:id/chat", handlers.SendChat)
	roomGroup.Get("/:id/chat", handlers.GetChats)

	// In-game routes
	roomGroup.Post("/:id/start", handlers.StartGame)
	roomGroup.Get("/:id/round", handlers.GetRoundInfo)
	roomGroup.Post("/:id/genre", handlers.SelectGenre)
	roomGroup.Post("/:id/answer", handlers.SubmitAnswer)
	roomGroup.Post("/:id/round/result", handlers.ShowRoundResult)
	roomGroup.Post("/:id/round/skip", handlers.SkipSong)
	roomGroup.Post("/:id/round/next", handlers.ProceedToNext)
	roomGroup.Post("/:id/audio/play", handlers.PlayAudio)
	roomGroup.Post("/:id/audio/pause", handlers.PauseAudio)
	roomGroup.Post("/:id/finish", handlers.FinishGame)
	roomGroup.Get("/:id/result", handlers.GetFinalResult)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"version":   "1.0.0",
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Printf("🚀 HTTP server starting on port %s", port)
	log.Printf("📊 Environment: %s", getEnv("APP_ENV", "development"))
	log.Printf("🔐 JWT Secret configured: %v", os.Getenv("JWT_SECRET") != "")

	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start HTTP server:", err)
	}
}

// validateEnvironment checks for required environment variables
func validateEnvironment() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("FATAL: JWT_SECRET environment variable must be set. Generate one with: openssl rand -base64 64")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("FATAL: JWT_SECRET must be at least 32 characters long")
	}

	if os.Getenv("APP_ENV") == "production" {
		corsOrigins := os.Getenv("CORS_ORIGINS")
		if corsOrigins == "" || corsOrigins == "http://localhost:3000" {
			log.Println("WARNING: CORS_ORIGINS not properly configured for production")
		}
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Don't expose internal errors in production
	if os.Getenv("APP_ENV") == "production" && code == 500 {
		message = "Internal Server Error"
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
