// package repositories provides the sqlite persistence used by the ranking stage.
package repositories

import (
	"database/sql"

	"github.com/desertthunder/conductr/internal/models"
)

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.ClassificationEntry, error) {
	var (
		entry     models.ClassificationEntry
		conductor sql.NullString
		orchestra sql.NullString
	)

	err := s.Scan(
		&entry.AlbumID,
		&entry.CanonicalKey,
		&entry.IsComplete,
		&conductor,
		&orchestra,
		&entry.CreatedAt,
		&entry.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Conductor = conductor.String
	entry.Orchestra = orchestra.String
	return &entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
