package handlers

import (
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskforge/internal/config"
	"taskforge/internal/middleware"
	"taskforge/internal/repository"
	"taskforge/pkg/cache"
	"taskforge/pkg/logger"
)

// Profile pictures are the only stored files. The core treats the saved
// path as an opaque reference on the account.

func validateImage(file *multipart.FileHeader) error {
	if file.Size > 5<<20 {
		return fiber.NewError(fiber.StatusBadRequest, "File size exceeds the limit of 5MB")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	allowedExts := map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
	if !allowedExts[ext] {
		return fiber.NewError(fiber.StatusBadRequest, "File type not allowed")
	}

	if !strings.Contains(file.Header.Get("Content-Type"), "image") {
		return fiber.NewError(fiber.StatusBadRequest, "File must be an image")
	}

	return nil
}

func GetFile(c *fiber.Ctx) error {
	filename := c.Params("filename")
	filePath := path.Join("uploads", filename)
	return c.SendFile(filePath)
}

// UploadProfilePicture stores the image and saves its reference on the
// actor's own account.
func UploadProfilePicture(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	uploadDir := "uploads"
	if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
		if err := os.Mkdir(uploadDir, os.ModePerm); err != nil {
			logger.ErrorLogger.Error("Error creating upload directory", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error creating upload directory",
				"success": false,
				"status":  500,
			})
		}
	}

	file, err := c.FormFile("profile_picture")
	if err != nil {
		logger.ErrorLogger.Error("Error uploading file", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Error uploading file",
			"success": false,
			"status":  400,
		})
	}

	if err := validateImage(file); err != nil {
		logger.ErrorLogger.Error("Error validating file", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": err.Error(),
			"success": false,
			"status":  400,
		})
	}

	newFilename := fmt.Sprintf("%d%s", time.Now().UnixNano(), filepath.Ext(file.Filename))
	filePath := path.Join(uploadDir, newFilename)

	if err := c.SaveFile(file, filePath); err != nil {
		logger.ErrorLogger.Error("Error saving file", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error saving file",
			"success": false,
			"status":  500,
		})
	}

	fileURL := fmt.Sprintf("/uploads/%s", newFilename)

	if err := repository.UpdateUser(config.DB, actor.ID, repository.UserUpdate{
		ProfilePicture: &fileURL,
	}); err != nil {
		logger.ErrorLogger.Error("Error updating profile picture", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating profile picture",
			"success": false,
			"status":  500,
		})
	}

	cache.Invalidate(config.Ctx, config.RedisClient, cache.UserKey(actor.ID))

	logger.AuditLogger.Info("Profile picture uploaded",
		zap.Int("user_id", actor.ID),
		zap.String("filename", newFilename))
	return c.JSON(fiber.Map{
		"message": "Profile picture uploaded successfully",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"profile_picture": fileURL,
		},
	})
}
