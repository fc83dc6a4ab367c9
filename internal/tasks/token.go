package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/repositories"
	"github.com/soundprint-app/soundprint/internal/services"
	"github.com/soundprint-app/soundprint/internal/shared"
	"golang.org/x/sync/singleflight"
)

// refreshSkew is how long before the stored expiry a token is already
// treated as expired, so a token never goes stale mid-request.
const refreshSkew = 120 * time.Second

// TokenManager owns the credential lifecycle for every user: the initial
// authorization-code exchange, transparent refresh ahead of expiry, and
// disconnecting. Concurrent refreshes for the same user are collapsed
// into a single provider call.
type TokenManager struct {
	credentials *repositories.CredentialRepository
	client      *services.SpotifyClient
	clock       clockwork.Clock
	logger      *log.Logger
	refreshing  singleflight.Group
}

// NewTokenManager creates a TokenManager. A nil clock falls back to the
// real clock.
func NewTokenManager(credentials *repositories.CredentialRepository, client *services.SpotifyClient, clock clockwork.Clock, logger *log.Logger) *TokenManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TokenManager{
		credentials: credentials,
		client:      client,
		clock:       clock,
		logger:      logger,
	}
}

// Connect trades a one-time authorization code for the user's first
// credential triple and stores it.
func (m *TokenManager) Connect(ctx context.Context, userID, code, redirectURI string) error {
	token, err := m.client.ExchangeAuthorizationCode(ctx, code, redirectURI)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	cred := models.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    m.clock.Now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	if err := m.credentials.Set(userID, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	m.logger.Info("streaming account connected", "user", userID)
	return nil
}

// Disconnect clears the user's credential triple. History and catalog
// data are kept.
func (m *TokenManager) Disconnect(userID string) error {
	return m.credentials.Clear(userID)
}

// GetValidAccessToken returns an access token that is guaranteed to be
// usable for at least refreshSkew. When the stored token is close to
// expiry it is refreshed first; a failed refresh leaves the stored
// credential untouched.
func (m *TokenManager) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := m.credentials.Get(userID)
	if err != nil {
		return "", err
	}
	if !cred.Complete() {
		return "", fmt.Errorf("user %s: %w", userID, shared.ErrNotConnected)
	}

	if m.fresh(cred) {
		return cred.AccessToken, nil
	}

	token, err, _ := m.refreshing.Do(userID, func() (any, error) {
		return m.refresh(ctx, userID)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (m *TokenManager) fresh(cred *models.Credential) bool {
	return m.clock.Now().Add(refreshSkew).Before(cred.ExpiresAt)
}

// refresh exchanges the stored refresh token for a new access token. It
// re-reads the credential because another goroutine may have completed a
// refresh while this one waited its turn.
func (m *TokenManager) refresh(ctx context.Context, userID string) (string, error) {
	cred, err := m.credentials.Get(userID)
	if err != nil {
		return "", err
	}
	if !cred.Complete() {
		return "", fmt.Errorf("user %s: %w", userID, shared.ErrNotConnected)
	}
	if m.fresh(cred) {
		return cred.AccessToken, nil
	}

	token, err := m.client.RefreshAccessToken(ctx, cred.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	refreshToken := cred.RefreshToken
	if token.RefreshToken != "" {
		// The provider rotated the refresh token.
		refreshToken = token.RefreshToken
	}

	next := models.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    m.clock.Now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	if err := m.credentials.Set(userID, next); err != nil {
		return "", fmt.Errorf("failed to store refreshed credential: %w", err)
	}

	m.logger.Debug("access token refreshed", "user", userID)
	return next.AccessToken, nil
}
