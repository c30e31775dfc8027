package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/shakirjon803-cell/obmen/config"
	"github.com/shakirjon803-cell/obmen/internal/auth"
	"github.com/shakirjon803-cell/obmen/internal/cache"
	"github.com/shakirjon803-cell/obmen/internal/database"
	"github.com/shakirjon803-cell/obmen/internal/handlers"
	"github.com/shakirjon803-cell/obmen/internal/middleware"
	"github.com/shakirjon803-cell/obmen/internal/obs"
	"github.com/shakirjon803-cell/obmen/internal/repository"
	"github.com/shakirjon803-cell/obmen/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := obs.NewLogger(cfg.Server.Env)

	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		return
	}
	defer db.Close()

	logger.Info("running database migrations")
	if err := database.RunMigrations(db.DB); err != nil {
		logger.Error("failed to run migrations", "err", err)
		return
	}

	redis, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("failed to connect to redis, presence and fanout degraded", "err", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, 168)

	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	convHandler := handlers.NewConversationHandler(convRepo, userRepo, msgRepo, redis, nil)
	msgHandler := handlers.NewMessageHandler(msgRepo, convRepo, userRepo)

	hub := websocket.NewHub(redis, convRepo, logger)
	go hub.Run()
	wsHandler := websocket.NewHandler(hub, convRepo, redis, logger, cfg.CORS.AllowedOrigins)

	rateLimiter := middleware.NewRateLimiter(cfg.Chat.RateLimitMessagesPerSec)
	rateLimiter.Cleanup()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Per-user messaging socket; the session credential travels through the
	// REST layer, not the socket.
	router.GET("/ws/:user_id", wsHandler.HandleWebSocket)

	chat := router.Group("/chat")
	chat.Use(middleware.AuthMiddleware(jwtService))
	{
		chat.GET("/conversations", convHandler.GetConversations)
		chat.POST("/conversations", convHandler.StartConversation)
		chat.GET("/conversations/:id", convHandler.GetConversation)
		chat.POST("/conversations/:id/messages", middleware.RateLimitMiddleware(rateLimiter), msgHandler.SendMessage)
		chat.POST("/conversations/:id/read", msgHandler.MarkAsRead)
		chat.POST("/conversations/:id/block", convHandler.BlockConversation)
		chat.GET("/unread", convHandler.GetUnreadCount)
		chat.GET("/online-users", wsHandler.GetOnlineUsers)
	}

	addr := ":" + cfg.Server.Port
	logger.Info("starting obmen chat server", "addr", addr, "env", cfg.Server.Env)
	if err := router.Run(addr); err != nil {
		logger.Error("server exited", "err", err)
	}
}
