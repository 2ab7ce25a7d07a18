package repository

import (
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"taskforge/internal/apperr"
	"taskforge/internal/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const userColumns = "id, username, email, password, role, is_active, assigned_admin_id, profile_picture, created_at, updated_at"

func scanUser(row sq.RowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Role, &u.IsActive,
		&u.AssignedAdmin, &u.ProfilePicture, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// NewUser carries the fields for account creation. Password is plaintext
// here and hashed before it touches the database.
type NewUser struct {
	Username      string
	Email         string
	PasswordHash  string
	Role          string
	AssignedAdmin *int
}

func CreateUser(db *sql.DB, n NewUser) (int, error) {
	var assignedAdmin sql.NullInt64
	if n.AssignedAdmin != nil {
		assignedAdmin = sql.NullInt64{Int64: int64(*n.AssignedAdmin), Valid: true}
	}

	var id int
	err := db.QueryRow(
		`INSERT INTO users (username, email, password, role, assigned_admin_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		n.Username, n.Email, n.PasswordHash, n.Role, assignedAdmin,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, apperr.ErrDuplicateIdentity
		}
		return 0, err
	}
	return id, nil
}

func GetUserByID(db *sql.DB, id int) (*models.User, error) {
	row := db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func GetUserByUsername(db *sql.DB, username string) (*models.User, error) {
	row := db.QueryRow("SELECT "+userColumns+" FROM users WHERE username = $1", username)
	return scanUser(row)
}

// UserUpdate applies only the fields that are set. Password must already be
// hashed. ClearAssignedAdmin removes the supervising admin link.
type UserUpdate struct {
	Username           *string
	Email              *string
	PasswordHash       *string
	Role               *string
	AssignedAdmin      *int
	ClearAssignedAdmin bool
	ProfilePicture     *string
}

func UpdateUser(db *sql.DB, id int, u UserUpdate) error {
	b := psql.Update("users").Set("updated_at", sq.Expr("CURRENT_TIMESTAMP"))
	if u.Username != nil {
		b = b.Set("username", *u.Username)
	}
	if u.Email != nil {
		b = b.Set("email", *u.Email)
	}
	if u.PasswordHash != nil {
		b = b.Set("password", *u.PasswordHash)
	}
	if u.Role != nil {
		b = b.Set("role", *u.Role)
	}
	if u.AssignedAdmin != nil {
		b = b.Set("assigned_admin_id", *u.AssignedAdmin)
	} else if u.ClearAssignedAdmin {
		b = b.Set("assigned_admin_id", nil)
	}
	if u.ProfilePicture != nil {
		b = b.Set("profile_picture", *u.ProfilePicture)
	}

	query, args, err := b.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := db.Exec(query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.ErrDuplicateIdentity
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func SetUserActive(db *sql.DB, id int, active bool) error {
	res, err := db.Exec(
		"UPDATE users SET is_active = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func DeleteUser(db *sql.DB, id int) error {
	res, err := db.Exec("DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// UserFilters narrows account listings. Zero values mean "no filter".
type UserFilters struct {
	Role          string
	AssignedAdmin int
	Active        *bool
}

func ListUsers(db *sql.DB, f UserFilters) ([]models.User, error) {
	b := psql.Select(userColumns).From("users").OrderBy("created_at DESC")
	if f.Role != "" {
		b = b.Where(sq.Eq{"role": f.Role})
	}
	if f.AssignedAdmin != 0 {
		b = b.Where(sq.Eq{"assigned_admin_id": f.AssignedAdmin})
	}
	if f.Active != nil {
		b = b.Where(sq.Eq{"is_active": *f.Active})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Role, &u.IsActive,
			&u.AssignedAdmin, &u.ProfilePicture, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
