package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"taskforge/internal/config"
	"taskforge/internal/models"
	"taskforge/internal/repository"
	"taskforge/pkg/logger"
)

// UseToken validates the bearer token and resolves the actor from the
// database, so role, active flag and admin assignment are always current
// rather than whatever the token was minted with. Deactivated accounts are
// rejected here, not just at login.
func UseToken(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "No token provided"})
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token format"})
	}
	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return config.SecretKey, nil
	})
	if err != nil || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token claims"})
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Token expired"})
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid user ID in token"})
	}

	actor, err := repository.GetUserByID(config.DB, int(userID))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Account not found"})
	}
	if !actor.IsActive {
		logger.SecurityLogger.Warn("Inactive account presented a valid token",
			zap.Int("user_id", actor.ID))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Account is inactive"})
	}

	c.Locals("actor", actor)
	return c.Next()
}

// Actor returns the authenticated account stored by UseToken.
func Actor(c *fiber.Ctx) *models.User {
	return c.Locals("actor").(*models.User)
}
