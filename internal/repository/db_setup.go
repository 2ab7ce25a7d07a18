package repository

import (
	"database/sql"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"taskforge/internal/models"
)

func CreateTableIfNotExists(db *sql.DB) {
	query := `
CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    username VARCHAR(255) NOT NULL UNIQUE,
    email VARCHAR(255) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'user',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    assigned_admin_id INT REFERENCES users (id) ON DELETE SET NULL,
    profile_picture VARCHAR(255),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
    id SERIAL PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL,
    assigned_to INT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    created_by INT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    due_date TIMESTAMP NOT NULL,
    started_at TIMESTAMP,
    completed_at TIMESTAMP,
    completion_report TEXT,
    worked_hours NUMERIC(6,2),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_scope
    ON tasks (assigned_to, status, due_date, created_by);
    `

	_, err := db.Exec(query)
	if err != nil {
		log.Fatalf("Error creating tables: %v", err)
	} else {
		fmt.Println("Tables 'users', 'tasks' are ready.")
	}
}

// CreateSuperadmin seeds the bootstrap account. Safe to call repeatedly; the
// insert is skipped when the username is taken.
func CreateSuperadmin(db *sql.DB, username, email, password string) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Error hashing password: %v", err)
	}

	query := `INSERT INTO users (username, email, password, role)
	          VALUES ($1, $2, $3, $4) ON CONFLICT (username) DO NOTHING`
	_, err = db.Exec(query, username, email, string(hashedPassword), models.RoleSuperadmin)
	if err != nil {
		log.Fatalf("Error inserting superadmin: %v", err)
	}
}

func DeleteAllTable(db *sql.DB) {
	query := `
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS users;
    `

	_, err := db.Exec(query)
	if err != nil {
		log.Fatalf("Error deleting tables: %v", err)
	}
}
