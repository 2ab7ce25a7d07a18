package handlers

import (
	"database/sql"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskforge/internal/apperr"
	"taskforge/internal/authz"
	"taskforge/internal/config"
	"taskforge/internal/lifecycle"
	"taskforge/internal/middleware"
	"taskforge/internal/models"
	"taskforge/internal/query"
	"taskforge/internal/repository"
	"taskforge/pkg/cache"
	"taskforge/pkg/logger"
)

// loadTaskAndAssignee fetches the task plus its assignee, which every task
// authorization decision needs (authority runs through the assignee's
// supervising admin).
func loadTaskAndAssignee(id int) (*models.Task, *models.User, error) {
	task, err := repository.GetTaskByID(config.DB, id)
	if err != nil {
		return nil, nil, err
	}
	assignee, err := repository.GetUserByID(config.DB, task.AssignedTo)
	if err != nil {
		return nil, nil, err
	}
	return task, assignee, nil
}

// CreateTask creates a pending task. Admins can only target active users
// assigned to them; creating a task grants no edit authority by itself.
func CreateTask(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	if !actor.IsAdmin() && !actor.IsSuperadmin() {
		return forbidden(c, "tasks")
	}

	type TaskRequest struct {
		Title       string    `json:"title" validate:"required,max=200"`
		Description string    `json:"description" validate:"required"`
		AssignedTo  int       `json:"assigned_to" validate:"required"`
		DueDate     time.Time `json:"due_date" validate:"required"`
	}

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	assignee, err := repository.GetUserByID(config.DB, req.AssignedTo)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Assignee not found",
			"success": false,
			"status":  400,
		})
	}
	if !authz.CanAssignTo(actor, assignee) {
		return forbidden(c, "tasks")
	}

	task := &models.Task{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		CreatedBy:   actor.ID,
		Status:      models.StatusPending,
		DueDate:     req.DueDate,
	}
	taskID, err := repository.CreateTask(config.DB, task)
	if err != nil {
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Task created",
		zap.Int("task_id", taskID),
		zap.Int("assigned_to", req.AssignedTo),
		zap.Int("created_by", actor.ID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Task created successfully",
		"success": true,
		"status":  201,
		"id":      taskID,
	})
}

// ListTasks returns one page of the actor's visible tasks, scoped by role
// and narrowed by the optional status/assignee/date filters. Malformed
// filter values are skipped, not errors.
func ListTasks(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	filters := query.ParseTaskFilters(c.Query)
	tasks, page, err := repository.ListTasks(config.DB, actor, filters, c.Query("page"))
	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching tasks",
			"success": false,
			"status":  500,
		})
	}

	for _, task := range tasks {
		cache.Set(config.Ctx, config.RedisClient, cache.TaskKey(task.ID), task)
	}

	logger.AuditLogger.Info("Tasks fetched", zap.Int("actor_id", actor.ID))
	return c.JSON(fiber.Map{
		"message":    "Tasks fetched successfully",
		"success":    true,
		"status":     200,
		"data":       tasks,
		"pagination": page,
	})
}

// GetTask returns a single task the actor is allowed to see.
func GetTask(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	var cached models.Task
	if cache.Get(config.Ctx, config.RedisClient, cache.TaskKey(taskID), &cached) {
		assignee, err := repository.GetUserByID(config.DB, cached.AssignedTo)
		if err == nil {
			if !authz.CanViewTask(actor, &cached, assignee) {
				return forbidden(c, "tasks")
			}
			return c.JSON(fiber.Map{
				"message": "Task found (from cache)",
				"success": true,
				"status":  200,
				"data":    cached,
			})
		}
	}

	task, assignee, err := loadTaskAndAssignee(taskID)
	if err != nil {
		logger.ErrorLogger.Error("Task not found", zap.Int("task_id", taskID))
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}

	if !authz.CanViewTask(actor, task, assignee) {
		return forbidden(c, "tasks")
	}

	cache.Set(config.Ctx, config.RedisClient, cache.TaskKey(taskID), task)

	return c.JSON(fiber.Map{
		"message": "Task found",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

// UpdateTask routes field edits and status changes through one atomic
// update. Field edits (title, description, assignment, due date) need edit
// authority; status changes are open to the assignee as well and run the
// lifecycle state machine, so a completion commits its report, hours and
// timestamps together or fails whole.
func UpdateTask(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	task, assignee, err := loadTaskAndAssignee(taskID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}

	type UpdateTaskRequest struct {
		Title            *string    `json:"title" validate:"omitempty,max=200"`
		Description      *string    `json:"description"`
		AssignedTo       *int       `json:"assigned_to"`
		DueDate          *time.Time `json:"due_date"`
		Status           *string    `json:"status"`
		CompletionReport *string    `json:"completion_report"`
		WorkedHours      *float64   `json:"worked_hours"`
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
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

	fieldEdit := req.Title != nil || req.Description != nil || req.AssignedTo != nil || req.DueDate != nil
	if !fieldEdit && req.Status == nil {
		// Report text and hours only land through a completed transition; a
		// body with nothing to change must not rewrite the row or echo a
		// task the actor never passed an authorization check for.
		return c.Status(400).JSON(fiber.Map{
			"message": "No updatable fields provided",
			"success": false,
			"status":  400,
		})
	}
	if fieldEdit && !authz.CanEditTask(actor, task, assignee) {
		return forbidden(c, "tasks")
	}
	if req.Status != nil && !authz.CanUpdateStatus(actor, task, assignee) {
		return forbidden(c, "tasks")
	}

	if req.AssignedTo != nil && *req.AssignedTo != task.AssignedTo {
		newAssignee, err := repository.GetUserByID(config.DB, *req.AssignedTo)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{
				"message": "Assignee not found",
				"success": false,
				"status":  400,
			})
		}
		if !authz.CanAssignTo(actor, newAssignee) {
			return forbidden(c, "tasks")
		}
	}

	updated, err := repository.UpdateTaskAtomic(config.DB, taskID, func(t *models.Task) error {
		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.AssignedTo != nil {
			t.AssignedTo = *req.AssignedTo
		}
		if req.DueDate != nil {
			t.DueDate = *req.DueDate
		}
		if req.Status != nil {
			return lifecycle.Apply(t, *req.Status, lifecycle.Submission{
				Report: req.CompletionReport,
				Hours:  req.WorkedHours,
			}, time.Now())
		}
		return nil
	})
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status == 500 {
			logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		} else {
			logger.AuditLogger.Warn("Task update rejected", zap.Int("task_id", taskID), zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{
			"message": err.Error(),
			"success": false,
			"status":  status,
		})
	}

	if req.Status != nil && updated.Status != task.Status {
		middleware.TaskTransitions.WithLabelValues(updated.Status).Inc()
	}

	cache.Invalidate(config.Ctx, config.RedisClient, cache.TaskKey(taskID))

	// Report text only travels through the report endpoint.
	updated.CompletionReport = sql.NullString{}
	cache.Set(config.Ctx, config.RedisClient, cache.TaskKey(taskID), updated)

	logger.AuditLogger.Info("Task updated",
		zap.Int("task_id", taskID),
		zap.Int("actor_id", actor.ID),
		zap.String("status", updated.Status))
	return c.JSON(fiber.Map{
		"message": "Task updated successfully",
		"success": true,
		"status":  200,
		"data":    updated,
	})
}

// DeleteTask removes a task. Supervisory authority only.
func DeleteTask(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	task, assignee, err := loadTaskAndAssignee(taskID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"message": "Task not found",
				"success": false,
				"status":  404,
			})
		}
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching task",
			"success": false,
			"status":  500,
		})
	}

	if !authz.CanEditTask(actor, task, assignee) {
		return forbidden(c, "tasks")
	}

	if err := repository.DeleteTask(config.DB, taskID); err != nil {
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting task",
			"success": false,
			"status":  500,
		})
	}

	cache.Invalidate(config.Ctx, config.RedisClient, cache.TaskKey(taskID))

	logger.AuditLogger.Info("Task deleted", zap.Int("task_id", taskID), zap.Int("actor_id", actor.ID))
	return c.Status(200).JSON(fiber.Map{
		"message": "Task deleted successfully",
		"success": true,
		"status":  200,
	})
}
