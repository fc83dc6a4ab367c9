package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/repositories"
	"github.com/soundprint-app/soundprint/internal/shared"
)

// fixedNow anchors every timeframe window in the tests.
var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type statsEnv struct {
	engine *Engine
	nina   string
	maya   string
}

// newStatsEnv seeds a small catalog and listening history:
//
//	ar1 "Burial" (electronic): al1 with tr1, tr2, tr4
//	ar2 "Eno" (ambient):       al2 with tr3
//
// nina: tr1 x3 in the last week, tr2 x1 last month, tr2 x1 and tr3 x2
// last year. maya: tr3 x5 all-time. tr4 is never played.
func newStatsEnv(t *testing.T) *statsEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	artists := repositories.NewArtistRepository(db)
	albums := repositories.NewAlbumRepository(db)
	tracks := repositories.NewTrackRepository(db)
	users := repositories.NewUserRepository(db)
	history := repositories.NewHistoryRepository(db)

	for _, artist := range []*models.Artist{
		{ID: "ar1", Name: "Burial", Genres: []string{"electronic"}},
		{ID: "ar2", Name: "Eno", Genres: []string{"ambient"}},
	} {
		if err := artists.Create(artist); err != nil {
			t.Fatalf("failed to seed artist: %v", err)
		}
	}

	for _, album := range []*models.Album{
		{ID: "al1", Name: "Untrue", Type: models.AlbumTypeAlbum, ArtistID: "ar1"},
		{ID: "al2", Name: "Discreet Music", Type: models.AlbumTypeAlbum, ArtistID: "ar2"},
	} {
		if err := albums.Create(album); err != nil {
			t.Fatalf("failed to seed album: %v", err)
		}
	}

	err = tracks.BulkCreate([]*models.Track{
		{ID: "tr1", Name: "Archangel", DurationMS: 238000, AlbumID: "al1"},
		{ID: "tr2", Name: "Near Dark", DurationMS: 228000, AlbumID: "al1"},
		{ID: "tr4", Name: "Endorphin", DurationMS: 178000, AlbumID: "al1"},
		{ID: "tr3", Name: "Discreet Music", DurationMS: 1823000, AlbumID: "al2"},
	})
	if err != nil {
		t.Fatalf("failed to seed tracks: %v", err)
	}

	nina := &models.User{Username: "nina"}
	maya := &models.User{Username: "maya"}
	for _, user := range []*models.User{nina, maya} {
		if err := users.Create(user); err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	lastWeek := fixedNow.AddDate(0, 0, -3)
	lastMonth := fixedNow.AddDate(0, 0, -20)
	lastYear := fixedNow.AddDate(0, -6, 0)

	var events []*models.PlaybackEvent
	addPlays := func(userID, trackID string, at time.Time, n int) {
		for i := 0; i < n; i++ {
			events = append(events, &models.PlaybackEvent{
				UserID:   userID,
				TrackID:  trackID,
				PlayedAt: at.Add(time.Duration(i) * time.Minute),
			})
		}
	}

	addPlays(nina.ID, "tr1", lastWeek, 3)
	addPlays(nina.ID, "tr2", lastMonth, 1)
	addPlays(nina.ID, "tr2", lastYear, 1)
	addPlays(nina.ID, "tr3", lastYear, 2)
	addPlays(maya.ID, "tr3", lastYear, 5)

	if err := history.BulkCreate(events); err != nil {
		t.Fatalf("failed to seed events: %v", err)
	}

	return &statsEnv{
		engine: NewEngine(db, clockwork.NewFakeClockAt(fixedNow)),
		nina:   nina.ID,
		maya:   maya.ID,
	}
}

func trackIDs(stats []TrackStat) []string {
	ids := make([]string, len(stats))
	for i, s := range stats {
		ids[i] = s.TrackID
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTimeframe(t *testing.T) {
	t.Run("Parse", func(t *testing.T) {
		for _, valid := range []string{"week", "month", "year", "all"} {
			if _, err := ParseTimeframe(valid); err != nil {
				t.Errorf("expected %q to parse, got %v", valid, err)
			}
		}
		if _, err := ParseTimeframe("decade"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Start Dates Are Midnight Truncated", func(t *testing.T) {
		cases := []struct {
			timeframe Timeframe
			want      time.Time
		}{
			{TimeframeWeek, time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)},
			{TimeframeMonth, time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)},
			{TimeframeYear, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
			{TimeframeAll, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		}
		for _, tc := range cases {
			if got := tc.timeframe.StartDate(fixedNow); !got.Equal(tc.want) {
				t.Errorf("%s: expected %v, got %v", tc.timeframe, tc.want, got)
			}
		}
	})
}

func TestEngine(t *testing.T) {
	t.Run("TopTracks", func(t *testing.T) {
		env := newStatsEnv(t)

		t.Run("All Time Ranks By Stream Count", func(t *testing.T) {
			stats, err := env.engine.TopTracks(env.nina, TimeframeAll, 20, 1)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			// tr1 has 3 plays; tr2 and tr3 tie on 2 and break on id.
			if !equalIDs(trackIDs(stats), []string{"tr1", "tr2", "tr3"}) {
				t.Errorf("unexpected order: %v", trackIDs(stats))
			}
			if stats[0].Streams != 3 || stats[1].Streams != 2 || stats[2].Streams != 2 {
				t.Errorf("unexpected stream counts: %+v", stats)
			}
			if stats[0].ArtistName != "Burial" || stats[0].AlbumName != "Untrue" {
				t.Errorf("expected joined names, got %+v", stats[0])
			}
		})

		t.Run("Week Window Excludes Older Plays", func(t *testing.T) {
			stats, err := env.engine.TopTracks(env.nina, TimeframeWeek, 20, 1)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !equalIDs(trackIDs(stats), []string{"tr1"}) {
				t.Errorf("expected only tr1 in the last week, got %v", trackIDs(stats))
			}
		})

		t.Run("Month Window", func(t *testing.T) {
			stats, err := env.engine.TopTracks(env.nina, TimeframeMonth, 20, 1)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !equalIDs(trackIDs(stats), []string{"tr1", "tr2"}) {
				t.Errorf("unexpected tracks in the last month: %v", trackIDs(stats))
			}
		})

		t.Run("Pages Are Disjoint And Ordered", func(t *testing.T) {
			page1, err := env.engine.TopTracks(env.nina, TimeframeAll, 2, 1)
			if err != nil {
				t.Fatalf("page 1 failed: %v", err)
			}
			page2, err := env.engine.TopTracks(env.nina, TimeframeAll, 2, 2)
			if err != nil {
				t.Fatalf("page 2 failed: %v", err)
			}
			if !equalIDs(trackIDs(page1), []string{"tr1", "tr2"}) {
				t.Errorf("unexpected page 1: %v", trackIDs(page1))
			}
			if !equalIDs(trackIDs(page2), []string{"tr3"}) {
				t.Errorf("unexpected page 2: %v", trackIDs(page2))
			}
		})

		t.Run("Rejects Invalid Pagination", func(t *testing.T) {
			if _, err := env.engine.TopTracks(env.nina, TimeframeAll, 0, 1); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput for limit 0, got %v", err)
			}
			if _, err := env.engine.TopTracks(env.nina, TimeframeAll, 10, 0); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput for page 0, got %v", err)
			}
		})

		t.Run("Scoped To The Requesting User", func(t *testing.T) {
			stats, err := env.engine.TopTracks(env.maya, TimeframeAll, 20, 1)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !equalIDs(trackIDs(stats), []string{"tr3"}) {
				t.Errorf("expected only maya's plays, got %v", trackIDs(stats))
			}
			if stats[0].Streams != 5 {
				t.Errorf("expected 5 streams, got %d", stats[0].Streams)
			}
		})
	})

	t.Run("TopAlbums", func(t *testing.T) {
		env := newStatsEnv(t)

		stats, err := env.engine.TopAlbums(env.nina, TimeframeAll, 20, 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(stats) != 2 || stats[0].AlbumID != "al1" || stats[1].AlbumID != "al2" {
			t.Fatalf("unexpected albums: %+v", stats)
		}
		if stats[0].Streams != 5 || stats[1].Streams != 2 {
			t.Errorf("unexpected stream counts: %+v", stats)
		}
	})

	t.Run("TopArtists", func(t *testing.T) {
		env := newStatsEnv(t)

		stats, err := env.engine.TopArtists(env.nina, TimeframeAll, 20, 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(stats) != 2 || stats[0].ArtistID != "ar1" || stats[1].ArtistID != "ar2" {
			t.Fatalf("unexpected artists: %+v", stats)
		}
	})

	t.Run("TopGenres", func(t *testing.T) {
		env := newStatsEnv(t)

		stats, err := env.engine.TopGenres(env.nina, TimeframeAll, 20, 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(stats) != 2 {
			t.Fatalf("expected 2 genres, got %+v", stats)
		}
		if stats[0].Name != "electronic" || stats[0].Streams != 5 {
			t.Errorf("unexpected top genre: %+v", stats[0])
		}
		if stats[1].Name != "ambient" || stats[1].Streams != 2 {
			t.Errorf("unexpected second genre: %+v", stats[1])
		}
	})

	t.Run("UserOverview", func(t *testing.T) {
		env := newStatsEnv(t)

		overview, err := env.engine.UserOverview(env.nina, TimeframeAll)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := Overview{Streams: 7, Tracks: 3, Albums: 2, Artists: 2}
		if *overview != want {
			t.Errorf("expected %+v, got %+v", want, *overview)
		}

		overview, err = env.engine.UserOverview(env.nina, TimeframeWeek)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want = Overview{Streams: 3, Tracks: 1, Albums: 1, Artists: 1}
		if *overview != want {
			t.Errorf("expected %+v, got %+v", want, *overview)
		}
	})

	t.Run("AlbumTracks Includes Unplayed Tracks", func(t *testing.T) {
		env := newStatsEnv(t)

		stats, err := env.engine.AlbumTracks("al1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(stats) != 3 {
			t.Fatalf("expected 3 tracks, got %+v", stats)
		}
		if stats[0].TrackID != "tr1" || stats[0].Streams != 3 {
			t.Errorf("unexpected top track: %+v", stats[0])
		}
		last := stats[len(stats)-1]
		if last.TrackID != "tr4" || last.Streams != 0 {
			t.Errorf("expected the unplayed track with zero streams, got %+v", last)
		}
	})

	t.Run("AlbumTopListeners", func(t *testing.T) {
		env := newStatsEnv(t)

		stats, err := env.engine.AlbumTopListeners("al2", 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(stats) != 2 {
			t.Fatalf("expected 2 listeners, got %+v", stats)
		}
		if stats[0].Username != "maya" || stats[0].Streams != 5 {
			t.Errorf("unexpected top listener: %+v", stats[0])
		}
		if stats[1].Username != "nina" || stats[1].Streams != 2 {
			t.Errorf("unexpected second listener: %+v", stats[1])
		}
	})

	t.Run("AlbumDuration", func(t *testing.T) {
		env := newStatsEnv(t)

		duration, err := env.engine.AlbumDuration("al1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := time.Duration(238000+228000+178000) * time.Millisecond
		if duration != want {
			t.Errorf("expected %v, got %v", want, duration)
		}
	})
}
