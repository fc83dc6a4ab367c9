// package repositories provides the sqlite persistence layer for users,
// credentials, the catalog graph and the playback event log.
//
// Catalog creates are idempotent: the provider-assigned id is the natural
// key, so a uniqueness violation on insert means another caller already
// persisted the row and is treated as success rather than an error.
package repositories

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// isUniqueViolation reports whether err is a sqlite unique or primary key
// constraint failure.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// isUniqueViolationOn reports whether err is a uniqueness violation on the
// named column (e.g. "artists.slug").
func isUniqueViolationOn(err error, column string) bool {
	return isUniqueViolation(err) && strings.Contains(err.Error(), column)
}
