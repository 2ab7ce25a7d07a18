package main

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"taskforge/configs"
	v1 "taskforge/internal/api/v1"
	"taskforge/internal/config"
	"taskforge/internal/middleware"
	"taskforge/internal/repository"
	"taskforge/pkg/database"
	"taskforge/pkg/logger"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	cfg := configs.LoadConfig()
	config.SecretKey = []byte(cfg.JWTSecret)
	config.EncryptionKey = cfg.EncryptionKey

	config.DB = database.ConnectDB(cfg)
	defer config.DB.Close()
	logger.SystemLogger.Info("Database Connected")

	repository.CreateTableIfNotExists(config.DB)
	repository.CreateSuperadmin(config.DB, "superadmin", "superadmin@mail.com", "superadmin")

	config.RedisClient = database.ConnectRedis(cfg)
	if config.RedisClient != nil {
		defer config.RedisClient.Close()
	}

	app := fiber.New()

	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	v1.RegisterRoutes(app)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.SystemLogger.Info("Application ready", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
