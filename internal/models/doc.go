// package models defines the data model for the streaming history service.
//
// The catalog graph (Artist -> Album -> Track) is populated lazily from
// playback events discovered during history syncs. PlaybackEvent is an
// append-only log deduplicated on the (user, track, played-at) triple.
package models
