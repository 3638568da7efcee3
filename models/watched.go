package models

import "time"

// WatchedEntry is one movie on a user's watched list. Entries are keyed by the
// catalog's display title, not by catalog id.
type WatchedEntry struct {
	ID         int       `json:"-"`
	UserID     string    `json:"-"`
	Movie      string    `json:"movie"`
	PosterPath *string   `json:"poster_path"`
	TMDBID     int       `json:"tmdb_id,omitempty"`
	CreatedAt  time.Time `json:"-"`
}

// AddWatchedRequest is the body of POST /watched
type AddWatchedRequest struct {
	UserID     string  `json:"user_id"`
	Movie      string  `json:"movie" validate:"required"`
	PosterPath *string `json:"poster_path,omitempty"`
}

// DeleteWatchedRequest is the body of DELETE /delete
type DeleteWatchedRequest struct {
	UserID string `json:"user_id"`
	Movie  string `json:"movie" validate:"required"`
}
