package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"movierec/auth"
	"movierec/common"
	"movierec/logging"
	"movierec/models"
	"movierec/validation"
)

var (
	errMissingUser      = errors.New("user_id is required")
	errIdentityMismatch = errors.New("user_id does not match the authenticated user")
	errInvalidBody      = errors.New("Invalid request body")
	errMovieNotFound    = errors.New("Movie not found")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to status codes. Anything unexpected is
// logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, errMissingUser), errors.Is(err, errInvalidBody):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrUsernameExists),
		errors.Is(err, common.ErrEmailExists),
		errors.Is(err, common.ErrPasswordTooLong),
		errors.Is(err, common.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, errIdentityMismatch):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, errMovieNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return validation.Struct(v)
}

// actingUser resolves whose data a request touches: the explicit user_id when
// given, otherwise the session identity. Both present and different is
// forbidden.
func actingUser(r *http.Request, explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)
	identity, authenticated := auth.IdentityFromContext(r.Context())

	switch {
	case explicit != "" && authenticated && identity.UserID != explicit:
		return "", errIdentityMismatch
	case explicit != "":
		return explicit, nil
	case authenticated:
		return identity.UserID, nil
	default:
		return "", errMissingUser
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		logging.Error().Err(err).Msg("Failed to write response")
	}
}

func (app *App) apiKeyHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"api_key": app.cfg.TMDB.APIKey})
}

func (app *App) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, err := app.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	writeJSON(w, http.StatusCreated, user)
}

func (app *App) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	token, err := app.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token})
}

func (app *App) searchHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	page, err := app.catalog.SearchMovies(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (app *App) genresHandler(w http.ResponseWriter, r *http.Request) {
	genres, err := app.catalog.GetGenres(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if genres == nil {
		genres = []models.Genre{}
	}

	writeJSON(w, http.StatusOK, genres)
}

func (app *App) addWatchedHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AddWatchedRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	userID, err := actingUser(r, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	entry := &models.WatchedEntry{
		UserID:     userID,
		Movie:      req.Movie,
		PosterPath: req.PosterPath,
	}

	// Without a poster, borrow the first search hit's poster and id
	lookupFailed := false
	if entry.PosterPath == nil || *entry.PosterPath == "" {
		page, err := app.catalog.SearchMovies(r.Context(), req.Movie)
		switch {
		case err != nil:
			lookupFailed = true
			logging.Ctx(r.Context()).Warn().Err(err).Str("movie", req.Movie).Msg("poster lookup failed")
		case len(page.Results) > 0:
			hit := page.Results[0]
			entry.TMDBID = hit.ID
			if hit.PosterPath != "" {
				poster := hit.PosterPath
				entry.PosterPath = &poster
			}
		}
	}

	if err := app.watchedRepo.Insert(r.Context(), entry); err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Let the backfill job retry the lookup now rather than on its next tick
	if lookupFailed && app.jobManager != nil {
		app.jobManager.TriggerBackfill()
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Movie added to watched list"})
}

func (app *App) listWatchedHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r, r.URL.Query().Get("user_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	entries, err := app.watchedRepo.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (app *App) deleteWatchedHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteWatchedRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	userID, err := actingUser(r, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	removed, err := app.watchedRepo.DeleteByTitle(r.Context(), userID, req.Movie)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if removed == 0 {
		writeServiceError(w, r, errMovieNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Movie removed from watched list"})
}

func (app *App) recommendationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r, r.URL.Query().Get("user_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	recs, err := app.recommender.Recommend(r.Context(), userID, r.URL.Query().Get("genre"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recs)
}
