package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/shared"
)

// HistoryRepository handles the append-only playback event log.
//
// played_at is stored as epoch milliseconds. The unique
// (user_id, track_id, played_at) constraint plus INSERT OR IGNORE makes
// appends with an overlapping sync cursor safe.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// LastEvent retrieves the most recent playback event for a user.
func (r *HistoryRepository) LastEvent(userID string) (*models.PlaybackEvent, error) {
	query := `
		SELECT id, user_id, track_id, played_at
		FROM playback_events
		WHERE user_id = ?
		ORDER BY played_at DESC
		LIMIT 1
	`

	var (
		event    models.PlaybackEvent
		playedAt int64
	)

	err := r.db.QueryRow(query, userID).Scan(&event.ID, &event.UserID, &event.TrackID, &playedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("playback event: %w", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playback event: %w", err)
	}

	event.PlayedAt = time.UnixMilli(playedAt).UTC()
	return &event, nil
}

// BulkCreate appends playback events in one transaction. Events whose
// (user, track, played-at) triple is already present are silently skipped.
func (r *HistoryRepository) BulkCreate(events []*models.PlaybackEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO playback_events (id, user_id, track_id, played_at) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		if event.ID == "" {
			event.ID = shared.GenerateID()
		}
		if _, err := stmt.Exec(event.ID, event.UserID, event.TrackID, event.PlayedAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert playback event: %w", err)
		}
	}

	return tx.Commit()
}

// CountForUser returns the total number of playback events for a user.
func (r *HistoryRepository) CountForUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM playback_events WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count playback events: %w", err)
	}
	return count, nil
}
