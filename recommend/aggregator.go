// Package recommend builds movie recommendations from a user's watched list.
//
// Every watched title is resolved to a catalog "seed" (the first search hit).
// The seed's catalog neighbors become candidates, tagged with the seed's
// genres. Candidates are merged in watch-list order, deduplicated by catalog
// id, stripped of anything already watched, optionally filtered by genre,
// shuffled and truncated.
package recommend

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"movierec/common"
	"movierec/logging"
	"movierec/metrics"
	"movierec/models"
)

// AllGenres disables genre filtering, as does an empty genre
const AllGenres = "All"

// Defaults used when Config leaves a field at zero
const (
	DefaultLimit       = 10
	DefaultConcurrency = 4
)

// Catalog is the subset of catalog lookups the aggregator performs
type Catalog interface {
	SearchMovies(ctx context.Context, query string) (*models.SearchPage, error)
	GetMovie(ctx context.Context, id int) (*models.CatalogMovie, error)
	GetRecommendations(ctx context.Context, id int) ([]models.CatalogMovie, error)
}

// WatchedLister returns a user's watched titles in the order they were added
type WatchedLister interface {
	ListTitles(ctx context.Context, userID string) ([]string, error)
}

// Config tunes an Aggregator
type Config struct {
	Limit       int // maximum recommendations returned
	Concurrency int // seeds expanded in parallel; 1 is strictly sequential
}

// Aggregator computes recommendations. It holds no per-request state and is
// safe for concurrent use.
type Aggregator struct {
	catalog     Catalog
	watched     WatchedLister
	limit       int
	concurrency int
	intn        func(n int) int
}

// NewAggregator creates an aggregator over the given catalog and watched list
func NewAggregator(catalog Catalog, watched WatchedLister, cfg Config) *Aggregator {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Aggregator{
		catalog:     catalog,
		watched:     watched,
		limit:       cfg.Limit,
		concurrency: cfg.Concurrency,
		intn:        rand.IntN,
	}
}

// seedResult is what one watched title contributed
type seedResult struct {
	found  bool
	seedID int
	recs   []models.Recommendation
}

// Recommend returns up to Limit unwatched movies for the user. genre "" or
// "All" means no filter; otherwise only candidates whose seed genres contain
// genre exactly are kept. The result is never nil.
//
// A catalog failure for a single seed drops that seed. If every seed fails the
// error wraps common.ErrCatalogUnavailable.
func (a *Aggregator) Recommend(ctx context.Context, userID, genre string) ([]models.Recommendation, error) {
	titles, err := a.watched.ListTitles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load watched list: %w", err)
	}
	if len(titles) == 0 {
		metrics.RecommendationResults.Observe(0)
		return []models.Recommendation{}, nil
	}

	results, err := a.expandSeeds(ctx, titles)
	if err != nil {
		return nil, err
	}

	candidates := merge(results, titles)
	candidates = filterGenre(candidates, genre)
	a.shuffle(candidates)
	if len(candidates) > a.limit {
		candidates = candidates[:a.limit]
	}

	metrics.RecommendationResults.Observe(float64(len(candidates)))
	return candidates, nil
}

// expandSeeds resolves every title with bounded concurrency. Results are
// indexed by title position so completion order does not matter.
func (a *Aggregator) expandSeeds(ctx context.Context, titles []string) ([]seedResult, error) {
	results := make([]seedResult, len(titles))
	failed := make([]error, len(titles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, title := range titles {
		g.Go(func() error {
			res, err := a.expandSeed(gctx, title)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logging.Ctx(ctx).Warn().Err(err).Str("title", title).Msg("skipping seed movie")
				metrics.RecommendationSeedFailures.Inc()
				failed[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstErr error
	for _, err := range failed {
		if err == nil {
			return results, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("%w: every seed lookup failed: %w", common.ErrCatalogUnavailable, firstErr)
}

func (a *Aggregator) expandSeed(ctx context.Context, title string) (seedResult, error) {
	page, err := a.catalog.SearchMovies(ctx, title)
	if err != nil {
		return seedResult{}, fmt.Errorf("search %q: %w", title, err)
	}
	if page == nil || len(page.Results) == 0 {
		logging.Ctx(ctx).Debug().Str("title", title).Msg("no catalog match for watched title")
		return seedResult{}, nil
	}
	seed := page.Results[0]

	details, err := a.catalog.GetMovie(ctx, seed.ID)
	if err != nil {
		return seedResult{}, fmt.Errorf("details for %d: %w", seed.ID, err)
	}

	neighbors, err := a.catalog.GetRecommendations(ctx, seed.ID)
	if err != nil {
		return seedResult{}, fmt.Errorf("recommendations for %d: %w", seed.ID, err)
	}

	genres := details.GenreNames()
	poster := details.PosterPath
	if poster == "" {
		poster = seed.PosterPath
	}

	recs := make([]models.Recommendation, 0, len(neighbors))
	for _, n := range neighbors {
		rec := models.Recommendation{CatalogMovie: n, GenreNames: genres}
		if rec.PosterPath == "" {
			rec.PosterPath = poster
		}
		recs = append(recs, rec)
	}

	return seedResult{found: true, seedID: seed.ID, recs: recs}, nil
}

// merge concatenates seed results in watch-list order, keeps the first
// occurrence of each catalog id and drops anything already watched
func merge(results []seedResult, titles []string) []models.Recommendation {
	seedIDs := make(map[int]struct{}, len(results))
	for _, r := range results {
		if r.found {
			seedIDs[r.seedID] = struct{}{}
		}
	}
	watchedTitles := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		watchedTitles[strings.ToLower(t)] = struct{}{}
	}

	seen := make(map[int]struct{})
	merged := []models.Recommendation{}
	for _, r := range results {
		for _, rec := range r.recs {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}

			if _, watched := seedIDs[rec.ID]; watched {
				continue
			}
			if _, watched := watchedTitles[strings.ToLower(rec.Title)]; watched {
				continue
			}
			merged = append(merged, rec)
		}
	}
	return merged
}

func filterGenre(recs []models.Recommendation, genre string) []models.Recommendation {
	if genre == "" || genre == AllGenres {
		return recs
	}
	kept := recs[:0]
	for _, rec := range recs {
		if slices.Contains(rec.GenreNames, genre) {
			kept = append(kept, rec)
		}
	}
	return kept
}

// shuffle is a Fisher-Yates shuffle
func (a *Aggregator) shuffle(recs []models.Recommendation) {
	for i := len(recs) - 1; i > 0; i-- {
		j := a.intn(i + 1)
		recs[i], recs[j] = recs[j], recs[i]
	}
}
