package repositories

import (
	"database/sql"
	"fmt"

	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/shared"
)

// AlbumRepository handles persistence for [models.Album].
type AlbumRepository struct {
	db *sql.DB
}

// NewAlbumRepository creates a new AlbumRepository with the given database connection
func NewAlbumRepository(db *sql.DB) *AlbumRepository {
	return &AlbumRepository{db: db}
}

// Create inserts an album. A duplicate-key failure means a concurrent
// resolver already persisted it and is treated as success.
func (r *AlbumRepository) Create(album *models.Album) error {
	album.Slug = shared.Slugify(album.Name)

	query := `
		INSERT INTO albums (id, name, type, track_count, release_year, artwork_url, artist_id, slug)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		album.ID,
		album.Name,
		string(album.Type),
		album.TrackCount,
		album.ReleaseYear,
		album.ArtworkURL,
		album.ArtistID,
		album.Slug,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to insert album: %w", err)
	}

	return nil
}

// BulkCreate inserts albums in one transaction, ignoring rows that already
// exist. Used by the artist catalog backfill.
func (r *AlbumRepository) BulkCreate(albums []*models.Album) error {
	if len(albums) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO albums (id, name, type, track_count, release_year, artwork_url, artist_id, slug)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, album := range albums {
		album.Slug = shared.Slugify(album.Name)
		_, err := stmt.Exec(
			album.ID,
			album.Name,
			string(album.Type),
			album.TrackCount,
			album.ReleaseYear,
			album.ArtworkURL,
			album.ArtistID,
			album.Slug,
		)
		if err != nil {
			return fmt.Errorf("failed to insert album %s: %w", album.ID, err)
		}
	}

	return tx.Commit()
}

// Exists reports whether an album with the given provider id is persisted.
func (r *AlbumRepository) Exists(id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM albums WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check album existence: %w", err)
	}
	return exists, nil
}

// Get retrieves an album by id.
func (r *AlbumRepository) Get(id string) (*models.Album, error) {
	query := `
		SELECT id, name, type, track_count, release_year, artwork_url, artist_id, slug
		FROM albums
		WHERE id = ?
	`

	var (
		album     models.Album
		albumType string
	)

	err := r.db.QueryRow(query, id).Scan(
		&album.ID,
		&album.Name,
		&albumType,
		&album.TrackCount,
		&album.ReleaseYear,
		&album.ArtworkURL,
		&album.ArtistID,
		&album.Slug,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("album %s: %w", id, shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}

	album.Type = models.AlbumType(albumType)
	return &album, nil
}

// CountForArtist returns the number of persisted albums for an artist.
func (r *AlbumRepository) CountForArtist(artistID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM albums WHERE artist_id = ?", artistID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count albums: %w", err)
	}
	return count, nil
}
