package repositories

import (
	"database/sql"
	"fmt"

	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/shared"
)

// CredentialRepository manages the provider credential triple stored on the
// user row. The three fields are only ever written together or cleared
// together, so a partial triple can never be produced by this repository.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new CredentialRepository with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get retrieves the credential for a user. A user with no linked account
// returns a zero-valued credential; callers distinguish via
// [models.Credential.Complete].
func (r *CredentialRepository) Get(userID string) (*models.Credential, error) {
	query := `
		SELECT spotify_access_token, spotify_refresh_token, spotify_token_expires
		FROM users
		WHERE id = ?
	`

	var (
		accessToken  sql.NullString
		refreshToken sql.NullString
		expiresAt    sql.NullTime
	)

	err := r.db.QueryRow(query, userID).Scan(&accessToken, &refreshToken, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userID, shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	cred := &models.Credential{}
	if accessToken.Valid {
		cred.AccessToken = accessToken.String
	}
	if refreshToken.Valid {
		cred.RefreshToken = refreshToken.String
	}
	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time
	}

	return cred, nil
}

// Set writes the full credential triple in a single statement.
func (r *CredentialRepository) Set(userID string, cred models.Credential) error {
	if !cred.Complete() {
		return fmt.Errorf("credential triple is incomplete: %w", shared.ErrInvalidInput)
	}

	query := `
		UPDATE users
		SET spotify_access_token = ?, spotify_refresh_token = ?, spotify_token_expires = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt, userID)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	return requireRow(result, userID)
}

// Clear removes the full credential triple in a single statement,
// disconnecting the user's streaming account.
func (r *CredentialRepository) Clear(userID string) error {
	query := `
		UPDATE users
		SET spotify_access_token = NULL, spotify_refresh_token = NULL, spotify_token_expires = NULL
		WHERE id = ?
	`

	result, err := r.db.Exec(query, userID)
	if err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}

	return requireRow(result, userID)
}

func requireRow(result sql.Result, userID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", userID, shared.ErrRecordNotFound)
	}
	return nil
}
