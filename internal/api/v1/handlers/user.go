package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"taskforge/internal/apperr"
	"taskforge/internal/authz"
	"taskforge/internal/config"
	"taskforge/internal/middleware"
	"taskforge/internal/models"
	"taskforge/internal/repository"
	"taskforge/pkg/cache"
	"taskforge/pkg/logger"
)

func forbidden(c *fiber.Ctx, resource string) error {
	actor := middleware.Actor(c)
	middleware.AuthzDenials.WithLabelValues(resource).Inc()
	logger.SecurityLogger.Warn("Forbidden",
		zap.String("resource", resource),
		zap.Int("actor_id", actor.ID),
		zap.String("role", actor.Role))
	return c.Status(403).JSON(fiber.Map{
		"message": "Forbidden",
		"success": false,
		"status":  403,
	})
}

// CreateUser creates an account. Superadmins may create users and admins;
// admins may only create users supervised by themselves. The superadmin role
// is never offered through this path.
func CreateUser(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	type CreateUserRequest struct {
		Username      string `json:"username" validate:"required,excludesall=@?"`
		Email         string `json:"email" validate:"required,email"`
		Password      string `json:"password" validate:"required,min=6"`
		Role          string `json:"role" validate:"omitempty,oneof=user admin"`
		AssignedAdmin *int   `json:"assigned_admin"`
	}

	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create user", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during create user", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	if !authz.CanCreateUserWithRole(actor, req.Role) {
		return forbidden(c, "users")
	}

	// Admins always supervise the users they create.
	if actor.IsAdmin() && req.Role == models.RoleUser {
		req.AssignedAdmin = &actor.ID
	}

	if req.AssignedAdmin != nil {
		if req.Role != models.RoleUser {
			return c.Status(400).JSON(fiber.Map{
				"message": "Only user accounts can have an assigned admin",
				"success": false,
				"status":  400,
			})
		}
		supervisor, err := repository.GetUserByID(config.DB, *req.AssignedAdmin)
		if err != nil || !supervisor.IsAdmin() {
			return c.Status(400).JSON(fiber.Map{
				"message": "Assigned admin must be an admin account",
				"success": false,
				"status":  400,
			})
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error hashing password",
			"success": false,
			"status":  500,
		})
	}

	userID, err := repository.CreateUser(config.DB, repository.NewUser{
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  string(hashedPassword),
		Role:          req.Role,
		AssignedAdmin: req.AssignedAdmin,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrDuplicateIdentity) {
			logger.SecurityLogger.Warn("Duplicate identity", zap.String("username", req.Username))
			return c.Status(409).JSON(fiber.Map{
				"message": "Username or email already exists",
				"success": false,
				"status":  409,
			})
		}
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating user",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("User created", zap.Int("user_id", userID), zap.Int("created_by", actor.ID))
	return c.Status(201).JSON(fiber.Map{
		"message": "User created successfully",
		"success": true,
		"status":  201,
		"data": fiber.Map{
			"id": userID,
		},
	})
}

// GetAllUsers lists accounts within the actor's authority: superadmins see
// everyone, admins only the users assigned to them. Supports role and
// active/inactive filters.
func GetAllUsers(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	filters := repository.UserFilters{}
	switch {
	case actor.IsSuperadmin():
		if role := c.Query("role"); models.ValidRole(role) {
			filters.Role = role
		}
	case actor.IsAdmin():
		filters.Role = models.RoleUser
		filters.AssignedAdmin = actor.ID
	default:
		return forbidden(c, "users")
	}

	switch c.Query("status") {
	case "active":
		active := true
		filters.Active = &active
	case "inactive":
		active := false
		filters.Active = &active
	}

	users, err := repository.ListUsers(config.DB, filters)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching users", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching users",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Users fetched", zap.Int("actor_id", actor.ID))
	return c.JSON(fiber.Map{
		"message": "Users fetched successfully",
		"success": true,
		"status":  200,
		"data":    users,
	})
}

// GetUser returns one account: the actor's own, or one within their
// management authority.
func GetUser(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	targetID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid user ID",
			"success": false,
			"status":  400,
		})
	}

	var cached models.User
	if cache.Get(config.Ctx, config.RedisClient, cache.UserKey(targetID), &cached) {
		if actor.ID != cached.ID && !authz.CanManageUser(actor, &cached) {
			return forbidden(c, "users")
		}
		return c.JSON(fiber.Map{
			"message": "User found (from cache)",
			"success": true,
			"status":  200,
			"data":    cached,
		})
	}

	target, err := repository.GetUserByID(config.DB, targetID)
	if err != nil {
		logger.SecurityLogger.Warn("User not found", zap.Int("target_id", targetID))
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	if actor.ID != target.ID && !authz.CanManageUser(actor, target) {
		return forbidden(c, "users")
	}

	cache.Set(config.Ctx, config.RedisClient, cache.UserKey(targetID), target)

	return c.JSON(fiber.Map{
		"message": "User found",
		"success": true,
		"status":  200,
		"data":    target,
	})
}

// UpdateUser edits an account within the actor's management authority.
// Role changes never reach superadmin; supervising-admin changes are a
// superadmin-only operation.
func UpdateUser(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	targetID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid user ID",
			"success": false,
			"status":  400,
		})
	}

	target, err := repository.GetUserByID(config.DB, targetID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	if !authz.CanManageUser(actor, target) {
		return forbidden(c, "users")
	}

	type UpdateUserRequest struct {
		Username      *string `json:"username"`
		Email         *string `json:"email" validate:"omitempty,email"`
		Password      *string `json:"password" validate:"omitempty,min=6"`
		Role          *string `json:"role" validate:"omitempty,oneof=user admin"`
		AssignedAdmin *int    `json:"assigned_admin"`
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update user", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}
	if err := config.Validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	update := repository.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
	}

	if req.Password != nil {
		// Password changes always re-hash; plaintext is never stored.
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error hashing password",
				"success": false,
				"status":  500,
			})
		}
		h := string(hashed)
		update.PasswordHash = &h
	}

	if req.Role != nil {
		if !authz.CanCreateUserWithRole(actor, *req.Role) {
			return forbidden(c, "users")
		}
		update.Role = req.Role
		if *req.Role != models.RoleUser {
			// Supervision is a user-only relation; a promoted account must
			// not stay manageable by its former admin.
			update.ClearAssignedAdmin = true
		}
	}

	if req.AssignedAdmin != nil {
		if update.ClearAssignedAdmin {
			return c.Status(400).JSON(fiber.Map{
				"message": "Only user accounts can have a supervising admin",
				"success": false,
				"status":  400,
			})
		}
		if !actor.IsSuperadmin() {
			return forbidden(c, "users")
		}
		supervisor, err := repository.GetUserByID(config.DB, *req.AssignedAdmin)
		if err != nil || !authz.CanSetAssignedAdmin(target, supervisor) {
			return c.Status(400).JSON(fiber.Map{
				"message": "Assigned admin must be a different admin account",
				"success": false,
				"status":  400,
			})
		}
		update.AssignedAdmin = req.AssignedAdmin
	}

	if err := repository.UpdateUser(config.DB, targetID, update); err != nil {
		if errors.Is(err, apperr.ErrDuplicateIdentity) {
			return c.Status(409).JSON(fiber.Map{
				"message": "Username or email already exists",
				"success": false,
				"status":  409,
			})
		}
		logger.ErrorLogger.Error("Error updating user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating user",
			"success": false,
			"status":  500,
		})
	}

	cache.Invalidate(config.Ctx, config.RedisClient, cache.UserKey(targetID))

	updated, err := repository.GetUserByID(config.DB, targetID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching updated user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching updated user",
			"success": false,
			"status":  500,
		})
	}
	cache.Set(config.Ctx, config.RedisClient, cache.UserKey(targetID), updated)

	logger.AuditLogger.Info("User updated", zap.Int("user_id", targetID), zap.Int("actor_id", actor.ID))
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"success": true,
		"status":  200,
		"data":    updated,
	})
}

// ToggleUserActive flips the soft-disable flag. Deactivation is the normal
// removal path; actors can never deactivate themselves.
func ToggleUserActive(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	targetID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid user ID",
			"success": false,
			"status":  400,
		})
	}

	target, err := repository.GetUserByID(config.DB, targetID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	if !authz.CanDeleteUser(actor, target) {
		return forbidden(c, "users")
	}

	if err := repository.SetUserActive(config.DB, targetID, !target.IsActive); err != nil {
		logger.ErrorLogger.Error("Error toggling user active flag", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating user",
			"success": false,
			"status":  500,
		})
	}

	cache.Invalidate(config.Ctx, config.RedisClient, cache.UserKey(targetID))

	logger.AuditLogger.Info("User active flag toggled",
		zap.Int("user_id", targetID),
		zap.Bool("is_active", !target.IsActive),
		zap.Int("actor_id", actor.ID))
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"id":        targetID,
			"is_active": !target.IsActive,
		},
	})
}

// DeleteUser hard-deletes an account. Destructive and admin-only; the usual
// removal path is deactivation via ToggleUserActive.
func DeleteUser(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	targetID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid user ID",
			"success": false,
			"status":  400,
		})
	}

	target, err := repository.GetUserByID(config.DB, targetID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	if !authz.CanDeleteUser(actor, target) {
		return forbidden(c, "users")
	}

	if err := repository.DeleteUser(config.DB, targetID); err != nil {
		logger.ErrorLogger.Error("Error deleting user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting user",
			"success": false,
			"status":  500,
		})
	}

	cache.Invalidate(config.Ctx, config.RedisClient, cache.UserKey(targetID))

	logger.AuditLogger.Info("User deleted", zap.Int("user_id", targetID), zap.Int("actor_id", actor.ID))
	return c.Status(200).JSON(fiber.Map{
		"message": "User deleted successfully",
		"success": true,
		"status":  200,
	})
}
