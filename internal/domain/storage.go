package domain

// TokenStore persists the single access-token string.
type TokenStore interface {
	// Token returns the stored token, "" when absent
	Token() (string, error)
	SaveToken(token string) error
	ClearToken() error
}

// MovieStore persists fetched movie details between runs.
type MovieStore interface {
	GetMovie(movieID int) (*Movie, bool)
	SaveMovie(movie *Movie) error
	InvalidateMovie(movieID int)
	InvalidateMovies()
}
