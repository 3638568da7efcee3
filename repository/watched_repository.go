package repository

import (
	"context"
	"database/sql"
	"fmt"

	"movierec/common"
	"movierec/logging"
	"movierec/models"
)

// WatchedRepository handles database operations for users' watched lists
type WatchedRepository struct {
	db DBTX
}

// NewWatchedRepository creates a new watched-list repository
func NewWatchedRepository(db DBTX) *WatchedRepository {
	return &WatchedRepository{db: db}
}

// Insert adds a movie to a user's watched list. Duplicate titles are not
// rejected here.
func (r *WatchedRepository) Insert(ctx context.Context, entry *models.WatchedEntry) error {
	query := `
		INSERT INTO watched (user_id, movie, poster_path, tmdb_id)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.UserID, entry.Movie, nullString(entry.PosterPath), nullInt(entry.TMDBID))
	if err != nil {
		return fmt.Errorf("failed to insert watched movie: %w", err)
	}

	return nil
}

// ListByUser returns the user's watched entries in the order they were added
func (r *WatchedRepository) ListByUser(ctx context.Context, userID string) ([]models.WatchedEntry, error) {
	query := `
		SELECT id, user_id, movie, poster_path, tmdb_id, created_at
		FROM watched
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watched movies: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close rows")
		}
	}()

	entries := []models.WatchedEntry{}
	for rows.Next() {
		var entry models.WatchedEntry
		var poster sql.NullString
		var tmdbID sql.NullInt64

		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Movie, &poster, &tmdbID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watched movie: %w", err)
		}

		// Handle nullable fields
		if poster.Valid {
			p := poster.String
			entry.PosterPath = &p
		}
		if tmdbID.Valid {
			entry.TMDBID = int(tmdbID.Int64)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return entries, nil
}

// ListTitles returns only the watched titles, in the order they were added
func (r *WatchedRepository) ListTitles(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT movie FROM watched WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watched titles: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close rows")
		}
	}()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan watched title: %w", err)
		}
		titles = append(titles, title)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return titles, nil
}

// DeleteByTitle removes every entry of the user whose title matches exactly
// and returns how many rows were removed
func (r *WatchedRepository) DeleteByTitle(ctx context.Context, userID, title string) (int64, error) {
	query := `DELETE FROM watched WHERE user_id = $1 AND movie = $2`

	result, err := r.db.ExecContext(ctx, query, userID, title)
	if err != nil {
		return 0, fmt.Errorf("failed to delete watched movie: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return removed, nil
}

// ListMissingPosters returns up to limit entries with id greater than
// afterID, across all users, that were never matched to the catalog: no
// poster and no catalog id. Entries come back in id order so callers can page
// with the last id seen.
func (r *WatchedRepository) ListMissingPosters(ctx context.Context, afterID, limit int) ([]models.WatchedEntry, error) {
	query := `
		SELECT id, user_id, movie
		FROM watched
		WHERE poster_path IS NULL AND tmdb_id IS NULL AND id > $1
		ORDER BY id
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries without posters: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close rows")
		}
	}()

	var entries []models.WatchedEntry
	for rows.Next() {
		var entry models.WatchedEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Movie); err != nil {
			return nil, fmt.Errorf("failed to scan watched movie: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return entries, nil
}

// SetCatalogInfo records the poster and catalog id resolved for an entry. An
// empty poster is stored as NULL.
func (r *WatchedRepository) SetCatalogInfo(ctx context.Context, id int, posterPath string, tmdbID int) error {
	query := `UPDATE watched SET poster_path = $1, tmdb_id = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, nullString(&posterPath), nullInt(tmdbID), id)
	if err != nil {
		return fmt.Errorf("failed to update watched movie: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("watched entry %d: %w", id, common.ErrNotFound)
	}

	return nil
}
