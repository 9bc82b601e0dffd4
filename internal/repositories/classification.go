package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/conductr/internal/models"
)

// DefaultClassificationTTL is how long a verdict stays valid. Album metadata is static.
const DefaultClassificationTTL = 30 * 24 * time.Hour

// ClassificationRepository persists classification verdicts keyed by (album_id, canonical_key).
//
// Writes are idempotent upserts, so concurrent classification of the same key is harmless.
// Expired rows are invisible to lookups and removed by [ClassificationRepository.Prune].
type ClassificationRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewClassificationRepository creates a repository with the given entry lifetime.
func NewClassificationRepository(db *sql.DB, ttl time.Duration) *ClassificationRepository {
	if ttl <= 0 {
		ttl = DefaultClassificationTTL
	}
	return &ClassificationRepository{db: db, ttl: ttl, now: time.Now}
}

const classificationColumns = `album_id, canonical_key, is_complete, conductor, orchestra, created_at, expires_at`

// Lookup returns the cached verdict for the key, reporting false on a miss or an expired entry.
func (r *ClassificationRepository) Lookup(ctx context.Context, albumID, canonicalKey string) (models.Classification, bool, error) {
	query := `SELECT ` + classificationColumns + `
		FROM classification_cache
		WHERE album_id = ? AND canonical_key = ? AND expires_at > ?`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, albumID, canonicalKey, r.clock()))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Classification{}, false, nil
	}
	if err != nil {
		return models.Classification{}, false, fmt.Errorf("failed to read classification: %w", err)
	}
	return entry.Classification, true, nil
}

// Store upserts the verdict and restarts its lifetime.
func (r *ClassificationRepository) Store(ctx context.Context, albumID, canonicalKey string, c models.Classification) error {
	now := r.clock()
	query := `
		INSERT INTO classification_cache (` + classificationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (album_id, canonical_key) DO UPDATE SET
			is_complete = excluded.is_complete,
			conductor = excluded.conductor,
			orchestra = excluded.orchestra,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`

	_, err := r.db.ExecContext(ctx, query,
		albumID,
		canonicalKey,
		c.IsComplete,
		nullString(c.Conductor),
		nullString(c.Orchestra),
		now,
		now.Add(r.ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to store classification: %w", err)
	}
	return nil
}

// List returns live entries, newest first, optionally filtered by canonical key.
func (r *ClassificationRepository) List(ctx context.Context, canonicalKey string, limit int) ([]models.ClassificationEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + classificationColumns + ` FROM classification_cache WHERE expires_at > ?`
	args := []any{r.clock()}
	if canonicalKey != "" {
		query += ` AND canonical_key = ?`
		args = append(args, canonicalKey)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list classifications: %w", err)
	}
	defer rows.Close()

	var entries []models.ClassificationEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Prune deletes expired entries and reports how many were removed.
func (r *ClassificationRepository) Prune(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM classification_cache WHERE expires_at <= ?`, r.clock())
	if err != nil {
		return 0, fmt.Errorf("failed to prune classifications: %w", err)
	}
	return result.RowsAffected()
}

// Clear deletes every entry.
func (r *ClassificationRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM classification_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear classifications: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the number of live entries.
func (r *ClassificationRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classification_cache WHERE expires_at > ?`, r.clock()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count classifications: %w", err)
	}
	return n, nil
}

// clock returns the current time in UTC at second precision so stored timestamps compare lexically.
func (r *ClassificationRepository) clock() time.Time {
	return r.now().UTC().Truncate(time.Second)
}
