package models

// CatalogMovie represents a movie as returned by the catalog
type CatalogMovie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview,omitempty"`
	PosterPath  string  `json:"poster_path"`
	ReleaseDate string  `json:"release_date,omitempty"`
	VoteAverage float64 `json:"vote_average"`
	GenreIDs    []int   `json:"genre_ids,omitempty"`
	Genres      []Genre `json:"genres,omitempty"` // only populated on detail lookups
}

// GenreNames returns the names of the movie's genres in catalog order
func (m *CatalogMovie) GenreNames() []string {
	names := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		names = append(names, g.Name)
	}
	return names
}

// Genre represents a catalog genre
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SearchPage is one page of catalog search results
type SearchPage struct {
	Page         int            `json:"page"`
	Results      []CatalogMovie `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// Recommendation is a catalog movie suggested from one of the user's watched
// movies. GenreNames are the genres of that seed movie, not the candidate's own.
type Recommendation struct {
	CatalogMovie
	GenreNames []string `json:"genre_names"`
}
