package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"taskforge/internal/config"
	"taskforge/internal/middleware"
	"taskforge/internal/repository"
	"taskforge/pkg/logger"
)

// Login authenticates by username/password and returns a session token plus
// the account. Accounts are created through the admin surface, never
// self-registered.
func Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	user, err := repository.GetUserByUsername(config.DB, req.Username)
	if err != nil {
		middleware.LoginAttempts.WithLabelValues("unknown_user").Inc()
		logger.SecurityLogger.Warn("User not found", zap.String("username", req.Username))
		return c.Status(401).JSON(fiber.Map{
			"message": "Invalid credentials",
			"success": false,
			"status":  401,
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		middleware.LoginAttempts.WithLabelValues("bad_password").Inc()
		logger.SecurityLogger.Warn("Invalid password", zap.String("username", req.Username))
		return c.Status(401).JSON(fiber.Map{
			"message": "Invalid credentials",
			"success": false,
			"status":  401,
		})
	}

	if !user.IsActive {
		middleware.LoginAttempts.WithLabelValues("inactive").Inc()
		logger.SecurityLogger.Warn("Inactive account login rejected", zap.Int("user_id", user.ID))
		return c.Status(401).JSON(fiber.Map{
			"message": "Account is inactive",
			"success": false,
			"status":  401,
		})
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     time.Now().Add(time.Hour * 1).Unix(),
	})

	tokenString, err := token.SignedString(config.SecretKey)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error generating token",
			"success": false,
			"status":  500,
		})
	}

	middleware.LoginAttempts.WithLabelValues("success").Inc()
	logger.AuditLogger.Info("Login success", zap.Int("user_id", user.ID), zap.String("role", user.Role))
	return c.JSON(fiber.Map{
		"message": "Login success",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"token":   tokenString,
			"account": user,
		},
	})
}
