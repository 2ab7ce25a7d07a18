package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskforge/internal/authz"
	"taskforge/internal/config"
	"taskforge/internal/middleware"
	"taskforge/internal/query"
	"taskforge/internal/repository"
	"taskforge/pkg/logger"
)

// GetTaskReport returns the completion report for one task. Visibility is
// wider than edit authority: an admin passes with either a supervisory or an
// authorship relation to the task. Plain users never see reports.
func GetTaskReport(c *fiber.Ctx) error {
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

	if !authz.CanViewReport(actor, task, assignee) {
		return forbidden(c, "reports")
	}

	if !task.CompletedAt.Valid {
		return c.Status(400).JSON(fiber.Map{
			"message": "Task is not completed yet",
			"success": false,
			"status":  400,
		})
	}

	full, err := repository.GetTaskWithReport(config.DB, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task report", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching task report",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Task report viewed",
		zap.Int("task_id", taskID),
		zap.Int("actor_id", actor.ID))
	return c.JSON(fiber.Map{
		"message": "Task report fetched successfully",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"completion_report": full.CompletionReport.String,
			"worked_hours":      full.WorkedHours.Float64,
			"task":              full,
		},
	})
}

// GetReports aggregates completed tasks in the actor's scope: count, total
// and average worked hours, plus one page of the matching tasks. Supports
// user and due-date range filters; bad dates are ignored.
func GetReports(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	if !actor.IsAdmin() && !actor.IsSuperadmin() {
		return forbidden(c, "reports")
	}

	filters := query.ParseTaskFilters(c.Query)
	// The summary is completed-only by construction; a status filter here
	// would be redundant at best.
	filters.Status = ""

	summary, tasks, page, err := repository.GetReportSummary(config.DB, actor, filters, c.Query("page"))
	if err != nil {
		logger.ErrorLogger.Error("Error building report summary", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error building report summary",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Report summary fetched", zap.Int("actor_id", actor.ID))
	return c.JSON(fiber.Map{
		"message":    "Report summary fetched successfully",
		"success":    true,
		"status":     200,
		"summary":    summary,
		"data":       tasks,
		"pagination": page,
	})
}
