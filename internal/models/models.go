package models

import (
	"time"
)

// User represents an account holder. The Spotify credential triple lives on
// the user row and is managed exclusively through the credential repository.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credential is a user's OAuth access/refresh token pair plus expiry for the
// streaming provider. The domain only ever wants all three fields or none;
// a partial triple is treated as "not connected".
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Complete reports whether all three credential fields are present.
func (c Credential) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != "" && !c.ExpiresAt.IsZero()
}

// AlbumType is the release type reported by the provider.
type AlbumType string

const (
	AlbumTypeAlbum       AlbumType = "album"
	AlbumTypeCompilation AlbumType = "compilation"
	AlbumTypeSingle      AlbumType = "single"
)

// ParseAlbumType maps a provider album type string onto an AlbumType.
// Unknown values fall back to AlbumTypeAlbum.
func ParseAlbumType(s string) AlbumType {
	switch AlbumType(s) {
	case AlbumTypeCompilation:
		return AlbumTypeCompilation
	case AlbumTypeSingle:
		return AlbumTypeSingle
	default:
		return AlbumTypeAlbum
	}
}

// Artist represents a catalog artist keyed by the provider-assigned id.
type Artist struct {
	ID       string
	Name     string
	ImageURL string
	Slug     string
	Genres   []string
}

// Album represents a catalog album. An album belongs to exactly one artist;
// when the provider lists several, the first listed artist is authoritative.
type Album struct {
	ID          string
	Name        string
	Type        AlbumType
	TrackCount  int
	ReleaseYear int
	ArtworkURL  string
	ArtistID    string
	Slug        string
}

// Track represents a catalog track belonging to exactly one album.
type Track struct {
	ID         string
	Name       string
	DurationMS int
	AlbumID    string
	Slug       string
}

// PlaybackEvent is one immutable record of a user streaming a track at a
// specific time. The (UserID, TrackID, PlayedAt) triple is unique and is the
// sole de-duplication key for overlapping poll windows.
type PlaybackEvent struct {
	ID       string
	UserID   string
	TrackID  string
	PlayedAt time.Time
}
