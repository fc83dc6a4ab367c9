package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/repositories"
	"github.com/soundprint-app/soundprint/internal/services"
	"github.com/soundprint-app/soundprint/internal/shared"
)

const (
	// resolverPageSize is the page size used for album track listings and
	// artist discographies.
	resolverPageSize = 50
	// backfillQueueSize bounds the number of pending artist backfills.
	backfillQueueSize = 64
)

type backfillItem struct {
	userID   string
	artistID string
}

// CatalogResolver makes sure every played track, its album, and its artist
// exist in the local catalog before a playback event referencing them is
// appended. Albums already present are the cheap path and cost no provider
// calls. Newly discovered artists additionally get their full discography
// fetched by a background worker.
type CatalogResolver struct {
	artists *repositories.ArtistRepository
	albums  *repositories.AlbumRepository
	tracks  *repositories.TrackRepository
	client  *services.SpotifyClient
	tokens  *TokenManager
	logger  *log.Logger

	queue     chan backfillItem
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewCatalogResolver creates a CatalogResolver and starts its backfill
// worker. Call [CatalogResolver.Close] to drain the queue and stop it.
func NewCatalogResolver(
	artists *repositories.ArtistRepository,
	albums *repositories.AlbumRepository,
	tracks *repositories.TrackRepository,
	client *services.SpotifyClient,
	tokens *TokenManager,
	logger *log.Logger,
) *CatalogResolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	r := &CatalogResolver{
		artists: artists,
		albums:  albums,
		tracks:  tracks,
		client:  client,
		tokens:  tokens,
		logger:  logger,
		queue:   make(chan backfillItem, backfillQueueSize),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Close stops accepting backfills, waits for queued ones to finish, and
// returns once the worker has exited.
func (r *CatalogResolver) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	r.wg.Wait()
}

// Resolve persists the catalog entities referenced by a batch of play
// history items. The batch is grouped by album so each album is handled
// exactly once regardless of how many of its tracks were played.
func (r *CatalogResolver) Resolve(ctx context.Context, userID, accessToken string, items []services.SpotifyPlayHistoryItem) error {
	type albumGroup struct {
		album  services.SpotifyAlbum
		tracks []*models.Track
	}

	groups := make(map[string]*albumGroup)
	var order []string

	for _, item := range items {
		album := item.Track.Album
		if album.ID == "" {
			continue
		}

		group, ok := groups[album.ID]
		if !ok {
			group = &albumGroup{album: album}
			groups[album.ID] = group
			order = append(order, album.ID)
		}
		group.tracks = append(group.tracks, &models.Track{
			ID:         item.Track.ID,
			Name:       item.Track.Name,
			DurationMS: item.Track.DurationMS,
			AlbumID:    album.ID,
		})
	}

	for _, albumID := range order {
		group := groups[albumID]

		exists, err := r.albums.Exists(albumID)
		if err != nil {
			return err
		}
		if exists {
			// Cheap path: just make sure the played tracks themselves are
			// present. INSERT OR IGNORE makes this idempotent.
			if err := r.tracks.BulkCreate(group.tracks); err != nil {
				return err
			}
			continue
		}

		if err := r.resolveAlbum(ctx, userID, accessToken, group.album); err != nil {
			return err
		}
	}

	return nil
}

// resolveAlbum persists a newly seen album, its artist, and its full track
// listing. A first sighting of the artist also enqueues a discography
// backfill.
func (r *CatalogResolver) resolveAlbum(ctx context.Context, userID, accessToken string, album services.SpotifyAlbum) error {
	if len(album.Artists) == 0 {
		return fmt.Errorf("album %s has no artist", album.ID)
	}
	artistID := album.Artists[0].ID

	known, err := r.artists.Exists(artistID)
	if err != nil {
		return err
	}
	if !known {
		// The simplified artist reference on the album carries no genres or
		// images, so the full object is fetched here.
		detail, err := r.client.Artist(ctx, accessToken, artistID)
		if err != nil {
			return fmt.Errorf("failed to fetch artist %s: %w", artistID, err)
		}

		artist := &models.Artist{
			ID:     detail.ID,
			Name:   detail.Name,
			Genres: detail.Genres,
		}
		if len(detail.Images) > 0 {
			artist.ImageURL = detail.Images[0].URL
		}
		if err := r.artists.Create(artist); err != nil {
			return err
		}

		r.queue <- backfillItem{userID: userID, artistID: artistID}
	}

	if err := r.albums.Create(albumModel(album, artistID)); err != nil {
		return err
	}

	return r.addAlbumTracks(ctx, accessToken, album.ID)
}

// addAlbumTracks pages through an album's complete track listing and
// persists every track.
func (r *CatalogResolver) addAlbumTracks(ctx context.Context, accessToken, albumID string) error {
	offset := 0
	for {
		page, err := r.client.AlbumTracks(ctx, accessToken, albumID, resolverPageSize, offset)
		if err != nil {
			return fmt.Errorf("failed to fetch tracks for album %s: %w", albumID, err)
		}

		tracks := make([]*models.Track, 0, len(page.Items))
		for _, item := range page.Items {
			tracks = append(tracks, &models.Track{
				ID:         item.ID,
				Name:       item.Name,
				DurationMS: item.DurationMS,
				AlbumID:    albumID,
			})
		}
		if err := r.tracks.BulkCreate(tracks); err != nil {
			return err
		}

		offset += len(page.Items)
		if offset >= page.Total || len(page.Items) == 0 {
			return nil
		}
	}
}

func (r *CatalogResolver) worker() {
	defer r.wg.Done()
	for item := range r.queue {
		if err := r.backfillArtist(item); err != nil {
			r.logger.Error("artist backfill failed", "artist", item.artistID, "error", err)
		}
	}
}

// backfillArtist fetches an artist's studio discography and persists every
// album with its tracks. It runs after the sync that discovered the artist
// has already finished, so it obtains its own access token.
func (r *CatalogResolver) backfillArtist(item backfillItem) error {
	ctx := context.Background()

	accessToken, err := r.tokens.GetValidAccessToken(ctx, item.userID)
	if err != nil {
		return err
	}

	offset := 0
	for {
		page, err := r.client.ArtistAlbums(ctx, accessToken, item.artistID, resolverPageSize, offset)
		if err != nil {
			return fmt.Errorf("failed to fetch albums for artist %s: %w", item.artistID, err)
		}

		albums := make([]*models.Album, 0, len(page.Items))
		for _, album := range page.Items {
			albums = append(albums, albumModel(album, item.artistID))
		}
		if err := r.albums.BulkCreate(albums); err != nil {
			return err
		}

		for _, album := range page.Items {
			if err := r.addAlbumTracks(ctx, accessToken, album.ID); err != nil {
				return err
			}
		}

		offset += len(page.Items)
		if offset >= page.Total || len(page.Items) == 0 {
			break
		}
	}

	r.logger.Info("artist discography backfilled", "artist", item.artistID)
	return nil
}

func albumModel(album services.SpotifyAlbum, artistID string) *models.Album {
	return &models.Album{
		ID:          album.ID,
		Name:        album.Name,
		Type:        models.ParseAlbumType(album.AlbumType),
		TrackCount:  album.TotalTracks,
		ReleaseYear: album.ReleaseYear(),
		ArtworkURL:  album.ArtworkURL(),
		ArtistID:    artistID,
	}
}
