package repositories

import (
	"database/sql"
	"fmt"

	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/shared"
)

// ArtistRepository handles persistence for [models.Artist] and their genres.
type ArtistRepository struct {
	db *sql.DB
}

// NewArtistRepository creates a new ArtistRepository with the given database connection
func NewArtistRepository(db *sql.DB) *ArtistRepository {
	return &ArtistRepository{db: db}
}

// Create inserts an artist and its genres. The slug is derived from the
// name; on a slug collision the first characters of the provider id are
// appended. Creating an artist that already exists is a no-op.
func (r *ArtistRepository) Create(artist *models.Artist) error {
	artist.Slug = shared.Slugify(artist.Name)

	err := r.insert(artist)
	if isUniqueViolationOn(err, "artists.slug") {
		artist.Slug = artist.Slug + "-" + shortID(artist.ID)
		err = r.insert(artist)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to insert artist: %w", err)
	}

	return r.attachGenres(artist.ID, artist.Genres)
}

func (r *ArtistRepository) insert(artist *models.Artist) error {
	query := `
		INSERT INTO artists (id, name, image_url, slug) VALUES (?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, artist.ID, artist.Name, artist.ImageURL, artist.Slug)
	return err
}

// attachGenres upserts genre names and links them to the artist.
func (r *ArtistRepository) attachGenres(artistID string, genres []string) error {
	if len(genres) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, genre := range genres {
		if _, err := tx.Exec("INSERT OR IGNORE INTO genres (name) VALUES (?)", genre); err != nil {
			return fmt.Errorf("failed to insert genre: %w", err)
		}

		var genreID int64
		if err := tx.QueryRow("SELECT id FROM genres WHERE name = ?", genre).Scan(&genreID); err != nil {
			return fmt.Errorf("failed to look up genre: %w", err)
		}

		if _, err := tx.Exec("INSERT OR IGNORE INTO artist_genres (artist_id, genre_id) VALUES (?, ?)", artistID, genreID); err != nil {
			return fmt.Errorf("failed to link genre: %w", err)
		}
	}

	return tx.Commit()
}

// Exists reports whether an artist with the given provider id is persisted.
func (r *ArtistRepository) Exists(id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM artists WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check artist existence: %w", err)
	}
	return exists, nil
}

// Get retrieves an artist by id, including its genres.
func (r *ArtistRepository) Get(id string) (*models.Artist, error) {
	var artist models.Artist
	query := `
		SELECT id, name, image_url, slug FROM artists WHERE id = ?
	`
	err := r.db.QueryRow(query, id).Scan(&artist.ID, &artist.Name, &artist.ImageURL, &artist.Slug)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artist %s: %w", id, shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT genres.name
		FROM artist_genres
		JOIN genres ON genres.id = artist_genres.genre_id
		WHERE artist_genres.artist_id = ?
		ORDER BY genres.name ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var genre string
		if err := rows.Scan(&genre); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		artist.Genres = append(artist.Genres, genre)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &artist, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
