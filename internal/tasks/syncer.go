package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/repositories"
	"github.com/soundprint-app/soundprint/internal/services"
	"github.com/soundprint-app/soundprint/internal/shared"
)

const (
	// debounceWindow suppresses a sync when the newest stored event is
	// this recent. Back-to-back syncs would only re-fetch the same page.
	debounceWindow = 30 * time.Second
	// recentlyPlayedLimit is the provider's page cap for recent history.
	recentlyPlayedLimit = 20
)

// HistorySyncer pulls a user's recently played tracks, resolves their
// catalog entities, and appends the playback events. One call fetches at
// most one provider page; regular scheduling keeps the history gapless.
type HistorySyncer struct {
	history  *repositories.HistoryRepository
	resolver *CatalogResolver
	tokens   *TokenManager
	client   *services.SpotifyClient
	clock    clockwork.Clock
	logger   *log.Logger
}

// NewHistorySyncer creates a HistorySyncer. A nil clock falls back to the
// real clock.
func NewHistorySyncer(
	history *repositories.HistoryRepository,
	resolver *CatalogResolver,
	tokens *TokenManager,
	client *services.SpotifyClient,
	clock clockwork.Clock,
	logger *log.Logger,
) *HistorySyncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &HistorySyncer{
		history:  history,
		resolver: resolver,
		tokens:   tokens,
		client:   client,
		clock:    clock,
		logger:   logger,
	}
}

// Sync performs one incremental poll for the user and returns the number
// of new playback events appended. A cold start (no stored events) fetches
// without a cursor; afterwards the cursor sits one millisecond past the
// newest stored event so the boundary play is never re-requested.
//
// Catalog resolution runs before the events are appended. If it fails the
// events are not written, the cursor does not advance, and the next sync
// retries the same window.
func (s *HistorySyncer) Sync(ctx context.Context, userID string) (int, error) {
	var after *time.Time

	last, err := s.history.LastEvent(userID)
	switch {
	case err == nil:
		if s.clock.Now().Sub(last.PlayedAt) < debounceWindow {
			s.logger.Debug("sync debounced", "user", userID)
			return 0, nil
		}
		cursor := last.PlayedAt.Add(time.Millisecond)
		after = &cursor
	case errors.Is(err, shared.ErrRecordNotFound):
		// Cold start.
	default:
		return 0, err
	}

	accessToken, err := s.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return 0, err
	}

	items, err := s.client.RecentlyPlayed(ctx, accessToken, recentlyPlayedLimit, after)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch recent history: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	if err := s.resolver.Resolve(ctx, userID, accessToken, items); err != nil {
		return 0, fmt.Errorf("failed to resolve catalog: %w", err)
	}

	events := make([]*models.PlaybackEvent, 0, len(items))
	for _, item := range items {
		playedAt, err := item.PlayedAtTime()
		if err != nil {
			return 0, err
		}
		events = append(events, &models.PlaybackEvent{
			UserID:   userID,
			TrackID:  item.Track.ID,
			PlayedAt: playedAt,
		})
	}

	if err := s.history.BulkCreate(events); err != nil {
		return 0, fmt.Errorf("failed to append playback events: %w", err)
	}

	s.logger.Info("history synced", "user", userID, "events", len(events))
	return len(events), nil
}
