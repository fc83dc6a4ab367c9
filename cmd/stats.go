package main

import (
	"context"
	"fmt"

	"github.com/soundprint-app/soundprint/internal/formatter"
	"github.com/soundprint-app/soundprint/internal/repositories"
	"github.com/soundprint-app/soundprint/internal/shared"
	"github.com/soundprint-app/soundprint/internal/stats"
	"github.com/urfave/cli/v3"
)

// statQuery holds the common flags of the ranked listing commands.
type statQuery struct {
	userID    string
	timeframe stats.Timeframe
	limit     int
	page      int
	csvPath   string
}

// statContext opens the database and parses the shared stat flags. The
// caller must close the returned database.
func (r *Runner) statContext(cmd *cli.Command) (*statQuery, *stats.Engine, func(), error) {
	db, err := r.openDatabase()
	if err != nil {
		return nil, nil, nil, err
	}
	closer := func() { db.Close() }

	timeframe, err := stats.ParseTimeframe(cmd.String("timeframe"))
	if err != nil {
		closer()
		return nil, nil, nil, err
	}

	userID, err := r.resolveUser(repositories.NewUserRepository(db), cmd.String("user"))
	if err != nil {
		closer()
		return nil, nil, nil, err
	}

	query := &statQuery{
		userID:    userID,
		timeframe: timeframe,
		limit:     cmd.Int("limit"),
		page:      cmd.Int("page"),
		csvPath:   cmd.String("csv"),
	}
	return query, stats.NewEngine(db, r.clock), closer, nil
}

// StatsTracks prints the user's most streamed tracks.
func (r *Runner) StatsTracks(ctx context.Context, cmd *cli.Command) error {
	query, engine, closer, err := r.statContext(cmd)
	if err != nil {
		return err
	}
	defer closer()

	rows, err := engine.TopTracks(query.userID, query.timeframe, query.limit, query.page)
	if err != nil {
		return err
	}

	if query.csvPath != "" {
		data, err := formatter.ExportTracksCSV(rows, query.page, query.limit)
		if err != nil {
			return err
		}
		if err := formatter.WriteCSV(query.csvPath, data); err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", query.csvPath)
	}

	return r.writePlain("%s\n", formatter.RenderTracks(rows, query.page, query.limit))
}

// StatsAlbums prints the user's most streamed albums.
func (r *Runner) StatsAlbums(ctx context.Context, cmd *cli.Command) error {
	query, engine, closer, err := r.statContext(cmd)
	if err != nil {
		return err
	}
	defer closer()

	rows, err := engine.TopAlbums(query.userID, query.timeframe, query.limit, query.page)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", formatter.RenderAlbums(rows, query.page, query.limit))
}

// StatsArtists prints the user's most streamed artists.
func (r *Runner) StatsArtists(ctx context.Context, cmd *cli.Command) error {
	query, engine, closer, err := r.statContext(cmd)
	if err != nil {
		return err
	}
	defer closer()

	rows, err := engine.TopArtists(query.userID, query.timeframe, query.limit, query.page)
	if err != nil {
		return err
	}

	if query.csvPath != "" {
		data, err := formatter.ExportArtistsCSV(rows, query.page, query.limit)
		if err != nil {
			return err
		}
		if err := formatter.WriteCSV(query.csvPath, data); err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", query.csvPath)
	}

	return r.writePlain("%s\n", formatter.RenderArtists(rows, query.page, query.limit))
}

// StatsGenres prints the user's most streamed genres.
func (r *Runner) StatsGenres(ctx context.Context, cmd *cli.Command) error {
	query, engine, closer, err := r.statContext(cmd)
	if err != nil {
		return err
	}
	defer closer()

	rows, err := engine.TopGenres(query.userID, query.timeframe, query.limit, query.page)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", formatter.RenderGenres(rows, query.page, query.limit))
}

// StatsOverview prints stream and entity counts for a timeframe.
func (r *Runner) StatsOverview(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	timeframe, err := stats.ParseTimeframe(cmd.String("timeframe"))
	if err != nil {
		return err
	}

	userID, err := r.resolveUser(repositories.NewUserRepository(db), cmd.String("user"))
	if err != nil {
		return err
	}

	overview, err := stats.NewEngine(db, r.clock).UserOverview(userID, timeframe)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", formatter.RenderOverview(overview, timeframe))
}

// StatsAlbum prints one album's track listing with global stream counts,
// its runtime, and its top listeners.
func (r *Runner) StatsAlbum(ctx context.Context, cmd *cli.Command) error {
	albumID := cmd.StringArg("album-id")
	if albumID == "" {
		return fmt.Errorf("album-id argument is required: %w", shared.ErrInvalidInput)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	album, err := repositories.NewAlbumRepository(db).Get(albumID)
	if err != nil {
		return err
	}

	engine := stats.NewEngine(db, r.clock)

	tracks, err := engine.AlbumTracks(albumID)
	if err != nil {
		return err
	}
	duration, err := engine.AlbumDuration(albumID)
	if err != nil {
		return err
	}
	listeners, err := engine.AlbumTopListeners(albumID, 5)
	if err != nil {
		return err
	}

	r.writePlain("%s (%d)\n", album.Name, album.ReleaseYear)
	r.writePlain("%s\n", formatter.RenderAlbumPage(tracks, duration))

	if len(listeners) > 0 {
		r.writePlain("\nTop listeners:\n")
		for i, listener := range listeners {
			r.writePlain("%d. %s (%d streams)\n", i+1, listener.Username, listener.Streams)
		}
	}
	return nil
}
