// Package services provides external service integrations.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"movierec/logging"
	"movierec/metrics"
	"movierec/models"
)

// DefaultTMDBBaseURL is the public TMDB v3 API root
const DefaultTMDBBaseURL = "https://api.themoviedb.org/3"

// Catalog is the set of movie catalog lookups the application needs
type Catalog interface {
	SearchMovies(ctx context.Context, query string) (*models.SearchPage, error)
	GetMovie(ctx context.Context, id int) (*models.CatalogMovie, error)
	GetRecommendations(ctx context.Context, id int) ([]models.CatalogMovie, error)
	GetGenres(ctx context.Context) ([]models.Genre, error)
}

// StatusError is returned when TMDB answers with a non-200 status
type StatusError struct {
	Operation  string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("TMDB %s returned status %d", e.Operation, e.StatusCode)
}

// clientError reports whether the catalog rejected the request itself, as
// opposed to being unavailable
func (e *StatusError) clientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// TMDBService handles interactions with The Movie Database API
type TMDBService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewTMDBService creates a new TMDB service instance. An empty baseURL
// selects the public API and a zero timeout means 30 seconds.
func NewTMDBService(apiKey, baseURL string, timeout time.Duration) *TMDBService {
	if baseURL == "" {
		baseURL = DefaultTMDBBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TMDBService{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type recommendationsResponse struct {
	Results []models.CatalogMovie `json:"results"`
}

type genresResponse struct {
	Genres []models.Genre `json:"genres"`
}

// SearchMovies searches the catalog by title and returns the first page
func (t *TMDBService) SearchMovies(ctx context.Context, query string) (*models.SearchPage, error) {
	var page models.SearchPage
	params := url.Values{"query": {query}}
	if err := t.get(ctx, "search", "/search/movie", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetMovie fetches movie details, including genres, by catalog id
func (t *TMDBService) GetMovie(ctx context.Context, id int) (*models.CatalogMovie, error) {
	var movie models.CatalogMovie
	if err := t.get(ctx, "details", "/movie/"+strconv.Itoa(id), nil, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

// GetRecommendations fetches the catalog's first page of recommendations for a movie
func (t *TMDBService) GetRecommendations(ctx context.Context, id int) ([]models.CatalogMovie, error) {
	var resp recommendationsResponse
	if err := t.get(ctx, "recommendations", "/movie/"+strconv.Itoa(id)+"/recommendations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetGenres fetches the English movie genre list
func (t *TMDBService) GetGenres(ctx context.Context) ([]models.Genre, error) {
	var resp genresResponse
	params := url.Values{"language": {"en-US"}}
	if err := t.get(ctx, "genres", "/genre/movie/list", params, &resp); err != nil {
		return nil, err
	}
	return resp.Genres, nil
}

func (t *TMDBService) get(ctx context.Context, operation, path string, params url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.CatalogRequestsTotal.WithLabelValues(operation, outcome).Inc()
		metrics.CatalogRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", t.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build TMDB %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch TMDB %s: %w", operation, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode TMDB %s response: %w", operation, err)
	}

	return nil
}
