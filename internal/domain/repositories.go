package domain

import (
	"context"
)

// CatalogClient provides read access to the movie catalog.
// Paged methods return one page of items; a short page means the end.
type CatalogClient interface {
	// GetPopular returns one page of the popular movies feed
	GetPopular(ctx context.Context, page int) ([]Movie, error)

	// GetByGenre returns one page of movies tagged with genreID
	GetByGenre(ctx context.Context, genreID, page int) ([]Movie, error)

	// SearchMovies returns one page of free-text search results
	SearchMovies(ctx context.Context, query string, page int) ([]Movie, error)

	// GetMovie returns full details for a single movie
	GetMovie(ctx context.Context, movieID int) (*Movie, error)

	// GetMoviesByIDs batch-fetches details for several movies
	GetMoviesByIDs(ctx context.Context, movieIDs []int) ([]Movie, error)

	// GetCast returns one page of a movie's cast
	GetCast(ctx context.Context, movieID, page int) ([]CastMember, error)

	// GetTrailers returns one page of a movie's videos
	GetTrailers(ctx context.Context, movieID, page int) ([]Trailer, error)

	// GetReviews returns one page of a movie's reviews
	GetReviews(ctx context.Context, movieID, page int) ([]Review, error)

	// GetGenres returns every known genre
	GetGenres(ctx context.Context) ([]Genre, error)
}

// AccountClient provides the signed-in user's profile and mutations.
type AccountClient interface {
	// Login exchanges credentials for an access token
	Login(ctx context.Context, creds Credentials) (string, error)

	// GetProfile returns the current user aggregate
	GetProfile(ctx context.Context) (*User, error)

	// UpdateProfile applies a partial profile update
	UpdateProfile(ctx context.Context, patch ProfilePatch) (*User, error)

	// AddToList creates membership of movieID in the list (idempotent)
	AddToList(ctx context.Context, kind ListKind, movieID int) error

	// RemoveFromList deletes membership of movieID from the list (idempotent)
	RemoveFromList(ctx context.Context, kind ListKind, movieID int) error

	// PutRating stores a 1..10 rating
	PutRating(ctx context.Context, movieID, value int) error

	// DeleteRating removes a rating
	DeleteRating(ctx context.Context, movieID int) error
}
