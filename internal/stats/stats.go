// Package stats computes ranked listening aggregates over the playback
// event log. Every ranking is scoped to one user and one timeframe, and
// ties on stream count break on ascending entity id so pagination is
// deterministic.
package stats

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/soundprint-app/soundprint/internal/shared"
)

// TrackStat is one row of a ranked track listing.
type TrackStat struct {
	TrackID    string
	Name       string
	Slug       string
	ArtistName string
	AlbumName  string
	Streams    int
}

// AlbumStat is one row of a ranked album listing.
type AlbumStat struct {
	AlbumID    string
	Name       string
	Slug       string
	ArtistName string
	ArtworkURL string
	Streams    int
}

// ArtistStat is one row of a ranked artist listing.
type ArtistStat struct {
	ArtistID string
	Name     string
	Slug     string
	ImageURL string
	Streams  int
}

// GenreStat is one row of a ranked genre listing.
type GenreStat struct {
	Name    string
	Streams int
}

// AlbumTrackStat is one track on an album page, with its stream count
// across all users. Tracks nobody played yet appear with zero streams.
type AlbumTrackStat struct {
	TrackID    string
	Name       string
	Slug       string
	DurationMS int
	Streams    int
}

// ListenerStat is one user on an album's top-listener board.
type ListenerStat struct {
	UserID   string
	Username string
	Streams  int
}

// Overview summarizes a user's listening within a timeframe.
type Overview struct {
	Streams int
	Tracks  int
	Albums  int
	Artists int
}

// Engine runs the aggregate queries. It reads the event log directly; all
// ranking and windowing happens in SQL.
type Engine struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewEngine creates an Engine. A nil clock falls back to the real clock.
func NewEngine(db *sql.DB, clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{db: db, clock: clock}
}

// cutoff converts a timeframe into the epoch-millisecond lower bound used
// by every windowed query.
func (e *Engine) cutoff(timeframe Timeframe) int64 {
	return timeframe.StartDate(e.clock.Now()).UnixMilli()
}

// pageBounds validates one-based limit and page and returns LIMIT/OFFSET.
func pageBounds(limit, page int) (int, int, error) {
	if limit < 1 {
		return 0, 0, fmt.Errorf("limit must be at least 1: %w", shared.ErrInvalidInput)
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("page must be at least 1: %w", shared.ErrInvalidInput)
	}
	return limit, (page - 1) * limit, nil
}

// TopTracks returns the user's most streamed tracks within the timeframe.
func (e *Engine) TopTracks(userID string, timeframe Timeframe, limit, page int) ([]TrackStat, error) {
	limit, offset, err := pageBounds(limit, page)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT tracks.id, tracks.name, tracks.slug, artists.name, albums.name, COUNT(*) AS streams
		FROM playback_events
		JOIN tracks ON tracks.id = playback_events.track_id
		JOIN albums ON albums.id = tracks.album_id
		JOIN artists ON artists.id = albums.artist_id
		WHERE playback_events.user_id = ? AND playback_events.played_at >= ?
		GROUP BY tracks.id
		ORDER BY streams DESC, tracks.id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := e.db.Query(query, userID, e.cutoff(timeframe), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query top tracks: %w", err)
	}
	defer rows.Close()

	var stats []TrackStat
	for rows.Next() {
		var s TrackStat
		if err := rows.Scan(&s.TrackID, &s.Name, &s.Slug, &s.ArtistName, &s.AlbumName, &s.Streams); err != nil {
			return nil, fmt.Errorf("failed to scan track stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// TopAlbums returns the user's most streamed albums within the timeframe.
func (e *Engine) TopAlbums(userID string, timeframe Timeframe, limit, page int) ([]AlbumStat, error) {
	limit, offset, err := pageBounds(limit, page)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT albums.id, albums.name, albums.slug, artists.name, albums.artwork_url, COUNT(*) AS streams
		FROM playback_events
		JOIN tracks ON tracks.id = playback_events.track_id
		JOIN albums ON albums.id = tracks.album_id
		JOIN artists ON artists.id = albums.artist_id
		WHERE playback_events.user_id = ? AND playback_events.played_at >= ?
		GROUP BY albums.id
		ORDER BY streams DESC, albums.id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := e.db.Query(query, userID, e.cutoff(timeframe), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query top albums: %w", err)
	}
	defer rows.Close()

	var stats []AlbumStat
	for rows.Next() {
		var s AlbumStat
		if err := rows.Scan(&s.AlbumID, &s.Name, &s.Slug, &s.ArtistName, &s.ArtworkURL, &s.Streams); err != nil {
			return nil, fmt.Errorf("failed to scan album stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// TopArtists returns the user's most streamed artists within the
// timeframe.
func (e *Engine) TopArtists(userID string, timeframe Timeframe, limit, page int) ([]ArtistStat, error) {
	limit, offset, err := pageBounds(limit, page)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT artists.id, artists.name, artists.slug, artists.image_url, COUNT(*) AS streams
		FROM playback_events
		JOIN tracks ON tracks.id = playback_events.track_id
		JOIN albums ON albums.id = tracks.album_id
		JOIN artists ON artists.id = albums.artist_id
		WHERE playback_events.user_id = ? AND playback_events.played_at >= ?
		GROUP BY artists.id
		ORDER BY streams DESC, artists.id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := e.db.Query(query, userID, e.cutoff(timeframe), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query top artists: %w", err)
	}
	defer rows.Close()

	var stats []ArtistStat
	for rows.Next() {
		var s ArtistStat
		if err := rows.Scan(&s.ArtistID, &s.Name, &s.Slug, &s.ImageURL, &s.Streams); err != nil {
			return nil, fmt.Errorf("failed to scan artist stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// TopGenres returns the user's most streamed genres within the timeframe.
// A play counts once per genre of the track's artist.
func (e *Engine) TopGenres(userID string, timeframe Timeframe, limit, page int) ([]GenreStat, error) {
	limit, offset, err := pageBounds(limit, page)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT genres.name, COUNT(*) AS streams
		FROM playback_events
		JOIN tracks ON tracks.id = playback_events.track_id
		JOIN albums ON albums.id = tracks.album_id
		JOIN artist_genres ON artist_genres.artist_id = albums.artist_id
		JOIN genres ON genres.id = artist_genres.genre_id
		WHERE playback_events.user_id = ? AND playback_events.played_at >= ?
		GROUP BY genres.id
		ORDER BY streams DESC, genres.name ASC
		LIMIT ? OFFSET ?
	`

	rows, err := e.db.Query(query, userID, e.cutoff(timeframe), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query top genres: %w", err)
	}
	defer rows.Close()

	var stats []GenreStat
	for rows.Next() {
		var s GenreStat
		if err := rows.Scan(&s.Name, &s.Streams); err != nil {
			return nil, fmt.Errorf("failed to scan genre stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// UserOverview returns stream and distinct entity counts for a user
// within the timeframe.
func (e *Engine) UserOverview(userID string, timeframe Timeframe) (*Overview, error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT tracks.id), COUNT(DISTINCT albums.id), COUNT(DISTINCT albums.artist_id)
		FROM playback_events
		JOIN tracks ON tracks.id = playback_events.track_id
		JOIN albums ON albums.id = tracks.album_id
		WHERE playback_events.user_id = ? AND playback_events.played_at >= ?
	`

	var o Overview
	err := e.db.QueryRow(query, userID, e.cutoff(timeframe)).Scan(&o.Streams, &o.Tracks, &o.Albums, &o.Artists)
	if err != nil {
		return nil, fmt.Errorf("failed to query overview: %w", err)
	}

	return &o, nil
}

// AlbumTracks returns every track on an album ranked by stream count
// across all users and all time.
func (e *Engine) AlbumTracks(albumID string) ([]AlbumTrackStat, error) {
	query := `
		SELECT tracks.id, tracks.name, tracks.slug, tracks.duration_ms, COUNT(playback_events.id) AS streams
		FROM tracks
		LEFT JOIN playback_events ON playback_events.track_id = tracks.id
		WHERE tracks.album_id = ?
		GROUP BY tracks.id
		ORDER BY streams DESC, tracks.id ASC
	`

	rows, err := e.db.Query(query, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to query album tracks: %w", err)
	}
	defer rows.Close()

	var stats []AlbumTrackStat
	for rows.Next() {
		var s AlbumTrackStat
		if err := rows.Scan(&s.TrackID, &s.Name, &s.Slug, &s.DurationMS, &s.Streams); err != nil {
			return nil, fmt.Errorf("failed to scan album track stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// AlbumTopListeners returns the users who streamed an album the most.
func (e *Engine) AlbumTopListeners(albumID string, limit int) ([]ListenerStat, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be at least 1: %w", shared.ErrInvalidInput)
	}

	query := `
		SELECT users.id, users.username, COUNT(*) AS streams
		FROM playback_events
		JOIN tracks ON tracks.id = playback_events.track_id
		JOIN users ON users.id = playback_events.user_id
		WHERE tracks.album_id = ?
		GROUP BY users.id
		ORDER BY streams DESC, users.id ASC
		LIMIT ?
	`

	rows, err := e.db.Query(query, albumID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query album listeners: %w", err)
	}
	defer rows.Close()

	var stats []ListenerStat
	for rows.Next() {
		var s ListenerStat
		if err := rows.Scan(&s.UserID, &s.Username, &s.Streams); err != nil {
			return nil, fmt.Errorf("failed to scan listener stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// AlbumDuration returns the total runtime of an album.
func (e *Engine) AlbumDuration(albumID string) (time.Duration, error) {
	var totalMS int64
	err := e.db.QueryRow(
		"SELECT COALESCE(SUM(duration_ms), 0) FROM tracks WHERE album_id = ?", albumID,
	).Scan(&totalMS)
	if err != nil {
		return 0, fmt.Errorf("failed to sum album duration: %w", err)
	}

	return time.Duration(totalMS) * time.Millisecond, nil
}
