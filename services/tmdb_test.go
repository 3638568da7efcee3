package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeTMDB(t *testing.T, handler http.HandlerFunc) (*TMDBService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewTMDBService("test-key", server.URL, 5*time.Second), server
}

func TestTMDBService_SearchMovies(t *testing.T) {
	svc, _ := newFakeTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "Inception", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":27205,"title":"Inception","poster_path":"/incep.jpg","genre_ids":[28,878]}],"total_pages":1,"total_results":1}`))
	})

	page, err := svc.SearchMovies(context.Background(), "Inception")
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalResults)
	require.Len(t, page.Results, 1)
	assert.Equal(t, 27205, page.Results[0].ID)
	assert.Equal(t, "/incep.jpg", page.Results[0].PosterPath)
	assert.Equal(t, []int{28, 878}, page.Results[0].GenreIDs)
}

func TestTMDBService_SearchMovies_EscapesQuery(t *testing.T) {
	svc, _ := newFakeTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Fast & Furious", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"page":1,"results":[]}`))
	})

	page, err := svc.SearchMovies(context.Background(), "Fast & Furious")
	require.NoError(t, err)
	assert.Empty(t, page.Results)
}

func TestTMDBService_GetMovie(t *testing.T) {
	svc, _ := newFakeTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/27205", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":27205,"title":"Inception","poster_path":null,"genres":[{"id":28,"name":"Action"},{"id":878,"name":"Science Fiction"}]}`))
	})

	movie, err := svc.GetMovie(context.Background(), 27205)
	require.NoError(t, err)
	assert.Equal(t, "Inception", movie.Title)
	assert.Empty(t, movie.PosterPath)
	assert.Equal(t, []string{"Action", "Science Fiction"}, movie.GenreNames())
}

func TestTMDBService_GetRecommendations(t *testing.T) {
	svc, _ := newFakeTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/27205/recommendations", r.URL.Path)
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":100,"title":"A"},{"id":101,"title":"B"}]}`))
	})

	recs, err := svc.GetRecommendations(context.Background(), 27205)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 100, recs[0].ID)
	assert.Equal(t, "B", recs[1].Title)
}

func TestTMDBService_GetGenres(t *testing.T) {
	svc, _ := newFakeTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/genre/movie/list", r.URL.Path)
		assert.Equal(t, "en-US", r.URL.Query().Get("language"))
		_, _ = w.Write([]byte(`{"genres":[{"id":28,"name":"Action"},{"id":35,"name":"Comedy"}]}`))
	})

	genres, err := svc.GetGenres(context.Background())
	require.NoError(t, err)
	require.Len(t, genres, 2)
	assert.Equal(t, "Comedy", genres[1].Name)
}

func TestTMDBService_NonOKStatus(t *testing.T) {
	svc, _ := newFakeTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status_message":"Invalid API key"}`))
	})

	_, err := svc.GetMovie(context.Background(), 1)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "details", statusErr.Operation)
}

func TestTMDBService_MalformedBody(t *testing.T) {
	svc, _ := newFakeTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := svc.SearchMovies(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestTMDBService_ContextCanceled(t *testing.T) {
	svc, _ := newFakeTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GetGenres(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewTMDBService_Defaults(t *testing.T) {
	svc := NewTMDBService("k", "", 0)
	assert.Equal(t, DefaultTMDBBaseURL, svc.baseURL)
	assert.Equal(t, 30*time.Second, svc.client.Timeout)
}
