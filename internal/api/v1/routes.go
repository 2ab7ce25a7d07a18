package v1

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskforge/internal/api/v1/handlers"
	"taskforge/internal/middleware"
)

func RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Auth
	api.Post("/login", handlers.Login)

	// Accounts (admin surface; authority checked per handler)
	userRoutes := api.Group("/users", middleware.UseToken)
	userRoutes.Get("/", handlers.GetAllUsers)
	userRoutes.Post("/", handlers.CreateUser)
	userRoutes.Get("/:id", handlers.GetUser)
	userRoutes.Put("/:id", handlers.UpdateUser)
	userRoutes.Patch("/:id/active", handlers.ToggleUserActive)
	userRoutes.Delete("/:id", handlers.DeleteUser)

	// Tasks
	taskRoutes := api.Group("/tasks", middleware.UseToken)
	taskRoutes.Post("/", handlers.CreateTask)
	taskRoutes.Get("/", handlers.ListTasks)
	taskRoutes.Get("/:id", handlers.GetTask)
	taskRoutes.Put("/:id", handlers.UpdateTask)
	taskRoutes.Delete("/:id", handlers.DeleteTask)
	taskRoutes.Get("/:id/report", handlers.GetTaskReport)

	// Completed-task reporting
	reportRoutes := api.Group("/reports", middleware.UseToken)
	reportRoutes.Get("/", handlers.GetReports)

	// Profile pictures
	uploadRoutes := api.Group("/upload", middleware.UseToken)
	uploadRoutes.Post("/profile_picture", handlers.UploadProfilePicture)
	uploadRoutes.Get("/:filename", handlers.GetFile)

	// Prometheus
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
