// Package lifecycle enforces the task state machine:
//
//	pending -> in_progress -> completed
//
// Completion requires a non-empty report and positive worked hours in the
// same call; the fields commit together or the transition fails whole.
// Completed is terminal; no regression path exists.
package lifecycle

import (
	"fmt"
	"time"

	"taskforge/internal/apperr"
	"taskforge/internal/models"
)

// Submission carries the optional fields accompanying a status change.
type Submission struct {
	Report *string
	Hours  *float64
}

// Apply mutates task in memory according to the state machine, or returns an
// error leaving the task untouched. The caller persists the full mutated
// field set in a single update.
func Apply(task *models.Task, newStatus string, sub Submission, now time.Time) error {
	if !models.ValidStatus(newStatus) {
		return fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, newStatus)
	}

	// Same state is a no-op, including completed -> completed.
	if task.Status == newStatus {
		return nil
	}

	if task.Status == models.StatusCompleted {
		return fmt.Errorf("%w: task is already completed", apperr.ErrIllegalTransition)
	}

	switch newStatus {
	case models.StatusPending:
		// in_progress -> pending would strand started_at.
		return fmt.Errorf("%w: cannot move back to pending", apperr.ErrIllegalTransition)

	case models.StatusInProgress:
		if !task.StartedAt.Valid {
			task.StartedAt.Time = now
			task.StartedAt.Valid = true
		}
		task.Status = models.StatusInProgress
		return nil

	case models.StatusCompleted:
		if sub.Report == nil || *sub.Report == "" || sub.Hours == nil {
			return apperr.ErrIncompleteSubmission
		}
		if *sub.Hours <= 0 {
			return fmt.Errorf("%w: worked hours must be positive", apperr.ErrValidation)
		}
		if !task.StartedAt.Valid {
			task.StartedAt.Time = now
			task.StartedAt.Valid = true
		}
		task.Status = models.StatusCompleted
		task.CompletedAt.Time = now
		task.CompletedAt.Valid = true
		task.CompletionReport.String = *sub.Report
		task.CompletionReport.Valid = true
		task.WorkedHours.Float64 = *sub.Hours
		task.WorkedHours.Valid = true
		return nil
	}

	return fmt.Errorf("%w: %s -> %s", apperr.ErrIllegalTransition, task.Status, newStatus)
}
