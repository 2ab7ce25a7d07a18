package repository

import (
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"taskforge/internal/apperr"
	"taskforge/internal/config"
	"taskforge/internal/models"
	"taskforge/internal/query"
	"taskforge/pkg/crypto"
)

// taskColumns deliberately leaves out completion_report: listings and detail
// reads must never carry report text. The report travels only through
// GetTaskWithReport behind the report-visibility check.
const taskColumns = "id, title, description, assigned_to, created_by, status, due_date, started_at, completed_at, worked_hours, created_at, updated_at"

func scanTask(scanner sq.RowScanner) (*models.Task, error) {
	var t models.Task
	err := scanner.Scan(&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.CreatedBy,
		&t.Status, &t.DueDate, &t.StartedAt, &t.CompletedAt, &t.WorkedHours,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func CreateTask(db *sql.DB, t *models.Task) (int, error) {
	var id int
	err := db.QueryRow(
		`INSERT INTO tasks (title, description, assigned_to, created_by, status, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		t.Title, t.Description, t.AssignedTo, t.CreatedBy, t.Status, t.DueDate,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func GetTaskByID(db *sql.DB, id int) (*models.Task, error) {
	row := db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	return scanTask(row)
}

// GetTaskWithReport loads a task including its decrypted completion report.
// Callers must have passed the report-visibility check first.
func GetTaskWithReport(db *sql.DB, id int) (*models.Task, error) {
	var t models.Task
	err := db.QueryRow(
		"SELECT "+taskColumns+", completion_report FROM tasks WHERE id = $1", id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.CreatedBy,
		&t.Status, &t.DueDate, &t.StartedAt, &t.CompletedAt, &t.WorkedHours,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletionReport)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if t.CompletionReport.Valid {
		plain, err := crypto.Decrypt(t.CompletionReport.String, config.EncryptionKey)
		if err != nil {
			return nil, err
		}
		t.CompletionReport.String = plain
	}
	return &t, nil
}

// UpdateTaskAtomic runs mutate against a row-locked copy of the task and
// writes the whole mutated field set back in one statement. Status, report,
// hours and the lifecycle timestamps commit together or not at all;
// concurrent completions of the same task serialize on the row lock.
func UpdateTaskAtomic(db *sql.DB, id int, mutate func(*models.Task) error) (*models.Task, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var t models.Task
	err = tx.QueryRow(
		"SELECT "+taskColumns+", completion_report FROM tasks WHERE id = $1 FOR UPDATE", id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.CreatedBy,
		&t.Status, &t.DueDate, &t.StartedAt, &t.CompletedAt, &t.WorkedHours,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletionReport)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if t.CompletionReport.Valid {
		plain, err := crypto.Decrypt(t.CompletionReport.String, config.EncryptionKey)
		if err != nil {
			return nil, err
		}
		t.CompletionReport.String = plain
	}

	if err := mutate(&t); err != nil {
		return nil, err
	}

	storedReport := t.CompletionReport
	if storedReport.Valid {
		enc, err := crypto.Encrypt(storedReport.String, config.EncryptionKey)
		if err != nil {
			return nil, err
		}
		storedReport.String = enc
	}

	t.UpdatedAt = time.Now()
	_, err = tx.Exec(
		`UPDATE tasks
		 SET title = $1, description = $2, assigned_to = $3, status = $4, due_date = $5,
		     started_at = $6, completed_at = $7, completion_report = $8, worked_hours = $9,
		     updated_at = $10
		 WHERE id = $11`,
		t.Title, t.Description, t.AssignedTo, t.Status, t.DueDate,
		t.StartedAt, t.CompletedAt, storedReport, t.WorkedHours, t.UpdatedAt, id,
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &t, nil
}

func DeleteTask(db *sql.DB, id int) error {
	res, err := db.Exec("DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// scopeTasks narrows a task query to what the actor may see: superadmin all,
// admin the tasks of users supervised by them, user their own tasks.
func scopeTasks(b sq.SelectBuilder, actor *models.User) sq.SelectBuilder {
	switch {
	case actor.IsSuperadmin():
		return b
	case actor.IsAdmin():
		return b.Where(sq.Expr(
			"assigned_to IN (SELECT id FROM users WHERE assigned_admin_id = ? AND role = ?)",
			actor.ID, models.RoleUser))
	default:
		return b.Where(sq.Eq{"assigned_to": actor.ID})
	}
}

func applyTaskFilters(b sq.SelectBuilder, f query.TaskFilters) sq.SelectBuilder {
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	if f.AssignedTo != 0 {
		b = b.Where(sq.Eq{"assigned_to": f.AssignedTo})
	}
	if f.DueDate != nil {
		b = b.Where(sq.Expr("due_date::date = ?::date", *f.DueDate))
	}
	if f.DateFrom != nil {
		b = b.Where(sq.Expr("due_date::date >= ?::date", *f.DateFrom))
	}
	if f.DateTo != nil {
		b = b.Where(sq.Expr("due_date::date <= ?::date", *f.DateTo))
	}
	return b
}

func countTasks(db *sql.DB, actor *models.User, f query.TaskFilters, completedOnly bool) (int, error) {
	b := scopeTasks(psql.Select("COUNT(*)").From("tasks"), actor)
	b = applyTaskFilters(b, f)
	if completedOnly {
		b = b.Where(sq.Eq{"status": models.StatusCompleted})
	}
	q, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var total int
	if err := db.QueryRow(q, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func queryTasks(db *sql.DB, b sq.SelectBuilder) ([]models.Task, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.CreatedBy,
			&t.Status, &t.DueDate, &t.StartedAt, &t.CompletedAt, &t.WorkedHours,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListTasks returns one page of the actor's visible tasks, newest first.
func ListTasks(db *sql.DB, actor *models.User, f query.TaskFilters, rawPage string) ([]models.Task, query.Page, error) {
	total, err := countTasks(db, actor, f, false)
	if err != nil {
		return nil, query.Page{}, err
	}
	page := query.Paginate(rawPage, total)

	b := scopeTasks(psql.Select(taskColumns).From("tasks"), actor)
	b = applyTaskFilters(b, f).
		OrderBy("created_at DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset))

	tasks, err := queryTasks(db, b)
	if err != nil {
		return nil, query.Page{}, err
	}
	return tasks, page, nil
}

// ReportSummary aggregates worked hours over completed tasks.
type ReportSummary struct {
	TotalCompleted   int     `json:"total_completed_tasks"`
	TotalWorkedHours float64 `json:"total_worked_hours"`
	AvgHoursPerTask  float64 `json:"avg_hours_per_task"`
}

// GetReportSummary restricts to completed tasks in the actor's scope,
// applies the filters, and returns count/sum/avg of worked hours plus one
// page of the matching tasks ordered by due date, newest first.
func GetReportSummary(db *sql.DB, actor *models.User, f query.TaskFilters, rawPage string) (ReportSummary, []models.Task, query.Page, error) {
	var summary ReportSummary

	b := scopeTasks(psql.Select(
		"COUNT(*)",
		"COALESCE(SUM(worked_hours), 0)",
		"COALESCE(AVG(worked_hours), 0)",
	).From("tasks"), actor)
	b = applyTaskFilters(b, f).Where(sq.Eq{"status": models.StatusCompleted})

	q, args, err := b.ToSql()
	if err != nil {
		return summary, nil, query.Page{}, err
	}
	if err := db.QueryRow(q, args...).Scan(
		&summary.TotalCompleted, &summary.TotalWorkedHours, &summary.AvgHoursPerTask); err != nil {
		return summary, nil, query.Page{}, err
	}

	page := query.Paginate(rawPage, summary.TotalCompleted)

	lb := scopeTasks(psql.Select(taskColumns).From("tasks"), actor)
	lb = applyTaskFilters(lb, f).
		Where(sq.Eq{"status": models.StatusCompleted}).
		OrderBy("due_date DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset))

	tasks, err := queryTasks(db, lb)
	if err != nil {
		return summary, nil, query.Page{}, err
	}
	return summary, tasks, page, nil
}
