// Package api implements the backend wire contract on top of the request
// gateway.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/gateway"
)

// Dispatcher sends requests to the backend. *gateway.Gateway implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req gateway.Request) (*gateway.Response, error)
	DispatchPublic(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// Client is the typed backend client.
type Client struct {
	gw     Dispatcher
	logger *slog.Logger
}

var (
	_ domain.CatalogClient = (*Client)(nil)
	_ domain.AccountClient = (*Client)(nil)
)

// NewClient creates a backend client.
func NewClient(gw Dispatcher, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{gw: gw, logger: logger}
}

func pageQuery(page int) url.Values {
	return url.Values{"page": {strconv.Itoa(page)}}
}

// get dispatches an authenticated GET and decodes the body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	resp, err := c.gw.Dispatch(ctx, gateway.Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		if resp != nil && resp.Status == http.StatusNotFound {
			return fmt.Errorf("%s: %w", path, domain.ErrItemNotFound)
		}
		return err
	}
	return resp.Decode(out)
}

// send dispatches an authenticated mutation and ignores the response body.
func (c *Client) send(ctx context.Context, method, path string, body interface{}) error {
	_, err := c.gw.Dispatch(ctx, gateway.Request{Method: method, Path: path, Body: body})
	return err
}

func stamp(movies []domain.Movie) []domain.Movie {
	now := time.Now()
	for i := range movies {
		movies[i].FetchedAt = now
	}
	return movies
}

// GetPopular returns one page of the popular feed
func (c *Client) GetPopular(ctx context.Context, page int) ([]domain.Movie, error) {
	var out moviesResponse
	if err := c.get(ctx, "/movies/popular", pageQuery(page), &out); err != nil {
		return nil, err
	}
	return stamp(out.Items), nil
}

// GetByGenre returns one page of a genre feed
func (c *Client) GetByGenre(ctx context.Context, genreID, page int) ([]domain.Movie, error) {
	var out moviesResponse
	if err := c.get(ctx, "/movies/genre/"+strconv.Itoa(genreID), pageQuery(page), &out); err != nil {
		return nil, err
	}
	return stamp(out.Items), nil
}

// SearchMovies returns one page of search results
func (c *Client) SearchMovies(ctx context.Context, query string, page int) ([]domain.Movie, error) {
	q := pageQuery(page)
	q.Set("query", query)
	var out moviesResponse
	if err := c.get(ctx, "/movies/search", q, &out); err != nil {
		return nil, err
	}
	return stamp(out.Items), nil
}

// GetMovie returns full details for one movie
func (c *Client) GetMovie(ctx context.Context, movieID int) (*domain.Movie, error) {
	var movie domain.Movie
	if err := c.get(ctx, "/movies/"+strconv.Itoa(movieID), nil, &movie); err != nil {
		return nil, err
	}
	movie.FetchedAt = time.Now()
	return &movie, nil
}

// GetMoviesByIDs batch-fetches movie details
func (c *Client) GetMoviesByIDs(ctx context.Context, movieIDs []int) ([]domain.Movie, error) {
	if len(movieIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(movieIDs))
	for i, id := range movieIDs {
		ids[i] = strconv.Itoa(id)
	}
	var out moviesResponse
	if err := c.get(ctx, "/movies", url.Values{"ids": {strings.Join(ids, ",")}}, &out); err != nil {
		return nil, err
	}
	return stamp(out.Items), nil
}

// GetCast returns one page of a movie's cast
func (c *Client) GetCast(ctx context.Context, movieID, page int) ([]domain.CastMember, error) {
	var out castResponse
	if err := c.get(ctx, fmt.Sprintf("/movies/%d/cast", movieID), pageQuery(page), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetTrailers returns one page of a movie's videos
func (c *Client) GetTrailers(ctx context.Context, movieID, page int) ([]domain.Trailer, error) {
	var out trailerResponse
	if err := c.get(ctx, fmt.Sprintf("/movies/%d/trailers", movieID), pageQuery(page), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetReviews returns one page of a movie's reviews
func (c *Client) GetReviews(ctx context.Context, movieID, page int) ([]domain.Review, error) {
	var out reviewResponse
	if err := c.get(ctx, fmt.Sprintf("/movies/%d/reviews", movieID), pageQuery(page), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetGenres returns the genre list
func (c *Client) GetGenres(ctx context.Context) ([]domain.Genre, error) {
	var out genreResponse
	if err := c.get(ctx, "/genres", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Login exchanges credentials for a token. Rejected credentials map to
// domain.ErrAuthFailed; field-level validation comes back as *gateway.Error.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	resp, err := c.gw.DispatchPublic(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   creds,
	})
	if err != nil {
		var gerr *gateway.Error
		if errors.As(err, &gerr) && gerr.Kind == gateway.KindStatus &&
			(gerr.Status == http.StatusUnauthorized || gerr.Status == http.StatusForbidden) {
			return "", domain.ErrAuthFailed
		}
		return "", err
	}

	var out loginResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("login response carried no token: %w", domain.ErrAuthFailed)
	}
	c.logger.Info("logged in", "email", creds.Email)
	return out.Token, nil
}

// GetProfile returns the current user aggregate
func (c *Client) GetProfile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.get(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	if user.Ratings == nil {
		user.Ratings = make(map[int]int)
	}
	return &user, nil
}

// UpdateProfile applies a partial profile update
func (c *Client) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.User, error) {
	resp, err := c.gw.Dispatch(ctx, gateway.Request{Method: http.MethodPatch, Path: "/me", Body: patch})
	if err != nil {
		return nil, err
	}
	var user domain.User
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	if user.Ratings == nil {
		user.Ratings = make(map[int]int)
	}
	return &user, nil
}

func listPath(kind domain.ListKind, movieID int) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%q: %w", kind, domain.ErrUnknownList)
	}
	return fmt.Sprintf("/me/%s/%d", kind, movieID), nil
}

// AddToList creates membership
func (c *Client) AddToList(ctx context.Context, kind domain.ListKind, movieID int) error {
	path, err := listPath(kind, movieID)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, path, nil)
}

// RemoveFromList deletes membership
func (c *Client) RemoveFromList(ctx context.Context, kind domain.ListKind, movieID int) error {
	path, err := listPath(kind, movieID)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodDelete, path, nil)
}

// PutRating stores a rating
func (c *Client) PutRating(ctx context.Context, movieID, value int) error {
	return c.send(ctx, http.MethodPut, "/me/ratings/"+strconv.Itoa(movieID), ratingRequest{Value: value})
}

// DeleteRating removes a rating
func (c *Client) DeleteRating(ctx context.Context, movieID int) error {
	return c.send(ctx, http.MethodDelete, "/me/ratings/"+strconv.Itoa(movieID), nil)
}
