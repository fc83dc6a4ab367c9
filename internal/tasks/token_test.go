package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/repositories"
	"github.com/soundprint-app/soundprint/internal/shared"
)

func TestTokenManager(t *testing.T) {
	newManager := func(t *testing.T, handler http.Handler) (*TokenManager, *repositories.CredentialRepository, *clockwork.FakeClock, string) {
		t.Helper()

		db := setupTestDB(t)
		creds := repositories.NewCredentialRepository(db)
		clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

		server := httptest.NewServer(handler)
		t.Cleanup(server.Close)

		client := newTestSpotifyClient(t, server.URL)
		manager := NewTokenManager(creds, client, clock, testLogger())

		userID := seedConnectedUser(t, db, "nina", "at-stored", clock.Now().Add(time.Hour))
		return manager, creds, clock, userID
	}

	countingTokenHandler := func(calls *atomic.Int32, response map[string]any) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			json.NewEncoder(w).Encode(response)
		})
	}

	t.Run("Fresh Token Is Returned Without Refresh", func(t *testing.T) {
		var calls atomic.Int32
		manager, creds, clock, userID := newManager(t, countingTokenHandler(&calls, nil))

		// Expiry sits just outside the refresh window.
		cred := models.Credential{
			AccessToken:  "at-stored",
			RefreshToken: "rt-stored",
			ExpiresAt:    clock.Now().Add(121 * time.Second),
		}
		if err := creds.Set(userID, cred); err != nil {
			t.Fatalf("failed to store credential: %v", err)
		}

		token, err := manager.GetValidAccessToken(context.Background(), userID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "at-stored" {
			t.Errorf("expected stored token, got %s", token)
		}
		if calls.Load() != 0 {
			t.Errorf("expected no provider calls, got %d", calls.Load())
		}
	})

	t.Run("Near Expiry Token Is Refreshed", func(t *testing.T) {
		var calls atomic.Int32
		manager, creds, clock, userID := newManager(t, countingTokenHandler(&calls, map[string]any{
			"access_token": "at-new", "expires_in": 3600,
		}))

		cred := models.Credential{
			AccessToken:  "at-stored",
			RefreshToken: "rt-stored",
			ExpiresAt:    clock.Now().Add(119 * time.Second),
		}
		if err := creds.Set(userID, cred); err != nil {
			t.Fatalf("failed to store credential: %v", err)
		}

		token, err := manager.GetValidAccessToken(context.Background(), userID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "at-new" {
			t.Errorf("expected refreshed token, got %s", token)
		}
		if calls.Load() != 1 {
			t.Errorf("expected one provider call, got %d", calls.Load())
		}

		stored, err := creds.Get(userID)
		if err != nil {
			t.Fatalf("failed to read credential: %v", err)
		}
		if stored.AccessToken != "at-new" {
			t.Errorf("expected stored access token at-new, got %s", stored.AccessToken)
		}
		// No rotated refresh token in the response, so the old one stays.
		if stored.RefreshToken != "rt-stored" {
			t.Errorf("expected refresh token rt-stored, got %s", stored.RefreshToken)
		}
		wantExpiry := clock.Now().Add(time.Hour)
		if !stored.ExpiresAt.Equal(wantExpiry) {
			t.Errorf("expected expiry %v, got %v", wantExpiry, stored.ExpiresAt)
		}
	})

	t.Run("Rotated Refresh Token Is Stored", func(t *testing.T) {
		var calls atomic.Int32
		manager, creds, clock, userID := newManager(t, countingTokenHandler(&calls, map[string]any{
			"access_token": "at-new", "expires_in": 3600, "refresh_token": "rt-rotated",
		}))

		cred := models.Credential{
			AccessToken:  "at-stored",
			RefreshToken: "rt-stored",
			ExpiresAt:    clock.Now().Add(time.Minute),
		}
		if err := creds.Set(userID, cred); err != nil {
			t.Fatalf("failed to store credential: %v", err)
		}

		if _, err := manager.GetValidAccessToken(context.Background(), userID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		stored, err := creds.Get(userID)
		if err != nil {
			t.Fatalf("failed to read credential: %v", err)
		}
		if stored.RefreshToken != "rt-rotated" {
			t.Errorf("expected rotated refresh token, got %s", stored.RefreshToken)
		}
	})

	t.Run("Failed Refresh Leaves Credential Untouched", func(t *testing.T) {
		manager, creds, clock, userID := newManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "invalid_grant", "error_description": "Refresh token revoked",
			})
		}))

		expiresAt := clock.Now().Add(time.Minute)
		cred := models.Credential{
			AccessToken:  "at-stored",
			RefreshToken: "rt-stored",
			ExpiresAt:    expiresAt,
		}
		if err := creds.Set(userID, cred); err != nil {
			t.Fatalf("failed to store credential: %v", err)
		}

		_, err := manager.GetValidAccessToken(context.Background(), userID)
		if !errors.Is(err, shared.ErrProviderAuth) {
			t.Errorf("expected ErrProviderAuth, got %v", err)
		}

		stored, err := creds.Get(userID)
		if err != nil {
			t.Fatalf("failed to read credential: %v", err)
		}
		if stored.AccessToken != "at-stored" || stored.RefreshToken != "rt-stored" || !stored.ExpiresAt.Equal(expiresAt) {
			t.Errorf("credential changed after failed refresh: %+v", stored)
		}
	})

	t.Run("Not Connected", func(t *testing.T) {
		db := setupTestDB(t)
		creds := repositories.NewCredentialRepository(db)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected provider call")
		}))
		t.Cleanup(server.Close)

		manager := NewTokenManager(creds, newTestSpotifyClient(t, server.URL), clockwork.NewFakeClock(), testLogger())

		user := &models.User{Username: "maya"}
		if err := repositories.NewUserRepository(db).Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		_, err := manager.GetValidAccessToken(context.Background(), user.ID)
		if !errors.Is(err, shared.ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})

	t.Run("Connect Stores Exchanged Credential", func(t *testing.T) {
		var calls atomic.Int32
		manager, creds, clock, userID := newManager(t, countingTokenHandler(&calls, map[string]any{
			"access_token": "at-first", "expires_in": 3600, "refresh_token": "rt-first",
		}))

		if err := manager.Connect(context.Background(), userID, "auth-code", "http://localhost/cb"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		stored, err := creds.Get(userID)
		if err != nil {
			t.Fatalf("failed to read credential: %v", err)
		}
		if stored.AccessToken != "at-first" || stored.RefreshToken != "rt-first" {
			t.Errorf("unexpected stored credential: %+v", stored)
		}
		if !stored.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
			t.Errorf("unexpected expiry %v", stored.ExpiresAt)
		}
	})

	t.Run("Disconnect Clears Credential", func(t *testing.T) {
		manager, creds, _, userID := newManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		if err := manager.Disconnect(userID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		stored, err := creds.Get(userID)
		if err != nil {
			t.Fatalf("failed to read credential: %v", err)
		}
		if stored.Complete() {
			t.Errorf("expected cleared credential, got %+v", stored)
		}
	})
}
