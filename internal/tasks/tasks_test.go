package tasks

import (
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/repositories"
	"github.com/soundprint-app/soundprint/internal/services"
	"github.com/soundprint-app/soundprint/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

// seedConnectedUser creates a user with a stored credential triple and
// returns the user id.
func seedConnectedUser(t *testing.T, db *sql.DB, username, accessToken string, expiresAt time.Time) string {
	t.Helper()

	user := &models.User{Username: username}
	if err := repositories.NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	cred := models.Credential{
		AccessToken:  accessToken,
		RefreshToken: "refresh-" + username,
		ExpiresAt:    expiresAt,
	}
	if err := repositories.NewCredentialRepository(db).Set(user.ID, cred); err != nil {
		t.Fatalf("failed to store credential: %v", err)
	}

	return user.ID
}

func newTestSpotifyClient(t *testing.T, serverURL string) *services.SpotifyClient {
	t.Helper()

	client, err := services.NewSpotifyClient(services.SpotifyClientOpts{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Logger:       testLogger(),
		BaseURL:      serverURL,
		AccountsURL:  serverURL,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}
