package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/shared"
)

// UserRepository handles persistence for [models.User].
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with a generated id and timestamps.
func (r *UserRepository) Create(user *models.User) error {
	if user.Username == "" {
		return fmt.Errorf("username is required: %w", shared.ErrInvalidInput)
	}

	now := time.Now().UTC()
	user.ID = shared.GenerateID()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, username, created_at, updated_at) VALUES (?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, user.ID, user.Username, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by id.
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `
		SELECT id, username, created_at, updated_at FROM users WHERE id = ?
	`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	query := `
		SELECT id, username, created_at, updated_at FROM users WHERE username = ?
	`
	return r.scanOne(r.db.QueryRow(query, username))
}

// List retrieves all users ordered by creation time.
func (r *UserRepository) List() ([]*models.User, error) {
	query := `
		SELECT id, username, created_at, updated_at FROM users ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// ListConnected retrieves all users whose credential triple is complete.
// These are the users the scheduler syncs.
func (r *UserRepository) ListConnected() ([]*models.User, error) {
	query := `
		SELECT id, username, created_at, updated_at
		FROM users
		WHERE spotify_access_token IS NOT NULL
		  AND spotify_refresh_token IS NOT NULL
		  AND spotify_token_expires IS NOT NULL
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query connected users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// Delete removes a user. Playback events cascade via the foreign key.
func (r *UserRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", id, shared.ErrRecordNotFound)
	}

	return nil
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}
