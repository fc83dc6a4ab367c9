// package formatter renders ranked listening aggregates as terminal
// tables and exports them to CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/soundprint-app/soundprint/internal/stats"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1DB954")).Bold(true)
	rankStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	cellStyle   = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
)

// newTable builds a bordered table with the shared styling.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(rankStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Inherit(headerStyle)
			}
			if col == 0 {
				return cellStyle.Inherit(rankStyle)
			}
			return cellStyle
		}).
		Headers(headers...)
}

// rank converts a zero-based row index and page into the displayed rank.
func rank(index, page, limit int) string {
	return strconv.Itoa((page-1)*limit + index + 1)
}

// RenderTracks renders a ranked track listing.
func RenderTracks(rows []stats.TrackStat, page, limit int) string {
	t := newTable("#", "Track", "Artist", "Album", "Streams")
	for i, row := range rows {
		t.Row(rank(i, page, limit), row.Name, row.ArtistName, row.AlbumName, strconv.Itoa(row.Streams))
	}
	return t.Render()
}

// RenderAlbums renders a ranked album listing.
func RenderAlbums(rows []stats.AlbumStat, page, limit int) string {
	t := newTable("#", "Album", "Artist", "Streams")
	for i, row := range rows {
		t.Row(rank(i, page, limit), row.Name, row.ArtistName, strconv.Itoa(row.Streams))
	}
	return t.Render()
}

// RenderArtists renders a ranked artist listing.
func RenderArtists(rows []stats.ArtistStat, page, limit int) string {
	t := newTable("#", "Artist", "Streams")
	for i, row := range rows {
		t.Row(rank(i, page, limit), row.Name, strconv.Itoa(row.Streams))
	}
	return t.Render()
}

// RenderGenres renders a ranked genre listing.
func RenderGenres(rows []stats.GenreStat, page, limit int) string {
	t := newTable("#", "Genre", "Streams")
	for i, row := range rows {
		t.Row(rank(i, page, limit), row.Name, strconv.Itoa(row.Streams))
	}
	return t.Render()
}

// RenderOverview renders the per-timeframe summary line.
func RenderOverview(o *stats.Overview, timeframe stats.Timeframe) string {
	return fmt.Sprintf("%s: %d streams across %d tracks, %d albums, %d artists",
		headerStyle.Render(string(timeframe)), o.Streams, o.Tracks, o.Albums, o.Artists)
}

// RenderAlbumPage renders an album's track listing with global stream
// counts and the total runtime.
func RenderAlbumPage(tracks []stats.AlbumTrackStat, duration time.Duration) string {
	t := newTable("#", "Track", "Length", "Streams")
	for i, row := range tracks {
		t.Row(strconv.Itoa(i+1), row.Name, formatTrackLength(row.DurationMS), strconv.Itoa(row.Streams))
	}
	return t.Render() + "\n" + rankStyle.Render(fmt.Sprintf("Total runtime: %s", formatRuntime(duration)))
}

func formatTrackLength(ms int) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func formatRuntime(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

// ExportTracksCSV converts a ranked track listing to CSV with columns:
// Rank, Track, Artist, Album, Streams
func ExportTracksCSV(rows []stats.TrackStat, page, limit int) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Rank", "Track", "Artist", "Album", "Streams"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, row := range rows {
		record := []string{rank(i, page, limit), row.Name, row.ArtistName, row.AlbumName, strconv.Itoa(row.Streams)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportArtistsCSV converts a ranked artist listing to CSV with columns:
// Rank, Artist, Streams
func ExportArtistsCSV(rows []stats.ArtistStat, page, limit int) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Rank", "Artist", "Streams"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, row := range rows {
		if err := writer.Write([]string{rank(i, page, limit), row.Name, strconv.Itoa(row.Streams)}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteCSV writes CSV data to the given path.
func WriteCSV(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}
