package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"movierec/common"
	"movierec/logging"
	"movierec/models"
)

// DefaultBackfillBatch is the number of entries examined per pass
const DefaultBackfillBatch = 50

// BackfillStore is the watched-list access the backfill job needs
type BackfillStore interface {
	ListMissingPosters(ctx context.Context, afterID, limit int) ([]models.WatchedEntry, error)
	SetCatalogInfo(ctx context.Context, id int, posterPath string, tmdbID int) error
}

// Searcher looks movies up by title
type Searcher interface {
	SearchMovies(ctx context.Context, query string) (*models.SearchPage, error)
}

// PosterBackfillJob fills in the poster and catalog id of watched entries
// that were saved while the catalog lookup failed. Each pass examines one
// batch and resumes after the last entry examined, wrapping around once the
// end is reached, so titles the catalog cannot match do not block the rest.
type PosterBackfillJob struct {
	store     BackfillStore
	catalog   Searcher
	batchSize int

	mu     sync.Mutex
	cursor int
}

// NewPosterBackfillJob creates a new backfill job
func NewPosterBackfillJob(store BackfillStore, catalog Searcher, batchSize int) *PosterBackfillJob {
	if batchSize <= 0 {
		batchSize = DefaultBackfillBatch
	}
	return &PosterBackfillJob{
		store:     store,
		catalog:   catalog,
		batchSize: batchSize,
	}
}

// Run processes one batch and returns how many entries were updated. A
// tripped catalog breaker ends the pass early.
func (j *PosterBackfillJob) Run(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.store.ListMissingPosters(ctx, j.cursor, j.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) < j.batchSize {
		j.cursor = 0
	} else {
		j.cursor = entries[len(entries)-1].ID
	}

	updated := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		page, err := j.catalog.SearchMovies(ctx, entry.Movie)
		if err != nil {
			if errors.Is(err, common.ErrCatalogUnavailable) {
				return updated, err
			}
			logging.Warn().Err(err).Str("movie", entry.Movie).Msg("backfill lookup failed")
			continue
		}
		if len(page.Results) == 0 {
			logging.Debug().Str("movie", entry.Movie).Msg("no catalog match")
			continue
		}

		// A match without a poster still records the catalog id so the entry
		// is not searched again
		hit := page.Results[0]
		if err := j.store.SetCatalogInfo(ctx, entry.ID, hit.PosterPath, hit.ID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				// removed since the batch was listed
				continue
			}
			return updated, fmt.Errorf("failed to store poster for %q: %w", entry.Movie, err)
		}
		if hit.PosterPath == "" {
			logging.Debug().Str("movie", entry.Movie).Int("tmdb_id", hit.ID).Msg("no poster available")
			continue
		}
		updated++
	}

	return updated, nil
}
