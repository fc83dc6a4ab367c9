package repositories

import (
	"database/sql"
	"fmt"

	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/shared"
)

// TrackRepository handles persistence for [models.Track].
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// BulkCreate inserts tracks in one transaction, ignoring rows that already
// exist. Tracks on an album are always inserted through this path, so
// re-resolving an album is cheap and idempotent.
func (r *TrackRepository) BulkCreate(tracks []*models.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO tracks (id, name, duration_ms, album_id, slug) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, track := range tracks {
		track.Slug = shared.Slugify(track.Name)
		if _, err := stmt.Exec(track.ID, track.Name, track.DurationMS, track.AlbumID, track.Slug); err != nil {
			return fmt.Errorf("failed to insert track %s: %w", track.ID, err)
		}
	}

	return tx.Commit()
}

// Get retrieves a track by id.
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	query := `
		SELECT id, name, duration_ms, album_id, slug FROM tracks WHERE id = ?
	`

	var track models.Track
	err := r.db.QueryRow(query, id).Scan(&track.ID, &track.Name, &track.DurationMS, &track.AlbumID, &track.Slug)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("track %s: %w", id, shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	return &track, nil
}

// CountForAlbum returns the number of persisted tracks on an album.
func (r *TrackRepository) CountForAlbum(albumID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM tracks WHERE album_id = ?", albumID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}
