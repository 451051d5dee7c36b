// Package catalog caches paginated movie collections, single-movie details and
// the client-side filter over search results.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/mmcdole/cinesync/internal/domain"
)

const defaultPageSize = 20

// Service is the entity store for catalog data.
type Service struct {
	client   domain.CatalogClient
	store    domain.MovieStore // optional write-through
	pageSize int
	logger   *slog.Logger

	movies   *pager[domain.Movie]
	cast     *pager[domain.CastMember]
	trailers *pager[domain.Trailer]
	reviews  *pager[domain.Review]

	mu          sync.RWMutex
	activeQuery string
	filters     Filters
	genres      []domain.Genre

	entityMu      sync.RWMutex
	entities      map[int]*domain.Movie
	entityLoading int
	entityErr     error
}

// NewService creates a catalog service. store may be nil.
func NewService(client domain.CatalogClient, store domain.MovieStore, pageSize int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	s := &Service{
		client:   client,
		store:    store,
		pageSize: pageSize,
		logger:   logger,
		entities: make(map[int]*domain.Movie),
	}
	s.movies = newPager[domain.Movie](pageSize, s.fetchMovies, logger)
	s.cast = newPager[domain.CastMember](pageSize, func(ctx context.Context, key Key, page int) ([]domain.CastMember, error) {
		id, err := movieIDOf(key)
		if err != nil {
			return nil, err
		}
		return client.GetCast(ctx, id, page)
	}, logger)
	s.trailers = newPager[domain.Trailer](pageSize, func(ctx context.Context, key Key, page int) ([]domain.Trailer, error) {
		id, err := movieIDOf(key)
		if err != nil {
			return nil, err
		}
		return client.GetTrailers(ctx, id, page)
	}, logger)
	s.reviews = newPager[domain.Review](pageSize, func(ctx context.Context, key Key, page int) ([]domain.Review, error) {
		id, err := movieIDOf(key)
		if err != nil {
			return nil, err
		}
		return client.GetReviews(ctx, id, page)
	}, logger)
	return s
}

// PageSize returns the page size used to infer hasMore.
func (s *Service) PageSize() int { return s.pageSize }

func movieIDOf(key Key) (int, error) {
	id, err := strconv.Atoi(key.Value)
	if err != nil {
		return 0, fmt.Errorf("invalid movie id in key %s: %w", key, err)
	}
	return id, nil
}

func (s *Service) fetchMovies(ctx context.Context, key Key, page int) ([]domain.Movie, error) {
	switch key.Kind {
	case KindPopular:
		return s.client.GetPopular(ctx, page)
	case KindGenre:
		id, err := strconv.Atoi(key.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid genre in key %s: %w", key, err)
		}
		return s.client.GetByGenre(ctx, id, page)
	case KindSearch:
		return s.client.SearchMovies(ctx, key.Value, page)
	default:
		return nil, fmt.Errorf("key %s does not hold movies", key)
	}
}

// FetchPage loads one page of a movie collection (popular, genre or search).
// page 0 means the next page.
func (s *Service) FetchPage(ctx context.Context, key Key, page int) (Collection[domain.Movie], error) {
	return s.movies.fetchPage(ctx, key, page)
}

// FetchPopular loads a page of the popular feed.
func (s *Service) FetchPopular(ctx context.Context, page int) (Collection[domain.Movie], error) {
	return s.FetchPage(ctx, PopularKey(), page)
}

// FetchGenre loads a page of a genre feed.
func (s *Service) FetchGenre(ctx context.Context, genreID, page int) (Collection[domain.Movie], error) {
	return s.FetchPage(ctx, GenreKey(genreID), page)
}

// Search makes query the active search and loads its first page unless it is
// already cached.
func (s *Service) Search(ctx context.Context, query string) (Collection[domain.Movie], error) {
	query = strings.TrimSpace(query)
	key := SearchKey(query)

	s.mu.Lock()
	s.activeQuery = query
	s.mu.Unlock()

	if s.movies.cached(key) {
		coll, _ := s.movies.get(key)
		return coll, nil
	}
	return s.movies.fetchPage(ctx, key, 1)
}

// FetchMoreSearch loads the next page of the active search.
func (s *Service) FetchMoreSearch(ctx context.Context) (Collection[domain.Movie], error) {
	query, ok := s.ActiveQuery()
	if !ok {
		return Collection[domain.Movie]{}, nil
	}
	return s.movies.fetchPage(ctx, SearchKey(query), 0)
}

// ActiveQuery returns the current search text.
func (s *Service) ActiveQuery() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeQuery, s.activeQuery != ""
}

// ClearSearch drops every search collection and the active query.
func (s *Service) ClearSearch() {
	s.mu.Lock()
	s.activeQuery = ""
	s.mu.Unlock()
	s.movies.drop(func(k Key) bool { return k.Kind == KindSearch })
	s.logger.Debug("cleared search")
}

// FetchCast loads a page of a movie's cast.
func (s *Service) FetchCast(ctx context.Context, movieID, page int) (Collection[domain.CastMember], error) {
	return s.cast.fetchPage(ctx, CastKey(movieID), page)
}

// FetchTrailers loads a page of a movie's trailers.
func (s *Service) FetchTrailers(ctx context.Context, movieID, page int) (Collection[domain.Trailer], error) {
	return s.trailers.fetchPage(ctx, TrailersKey(movieID), page)
}

// FetchReviews loads a page of a movie's reviews.
func (s *Service) FetchReviews(ctx context.Context, movieID, page int) (Collection[domain.Review], error) {
	return s.reviews.fetchPage(ctx, ReviewsKey(movieID), page)
}

// Collection returns a snapshot of a movie collection.
func (s *Service) Collection(key Key) (Collection[domain.Movie], bool) {
	return s.movies.get(key)
}

// Items returns the items of a movie collection.
func (s *Service) Items(key Key) []domain.Movie {
	coll, _ := s.movies.get(key)
	return coll.Items
}

func (s *Service) Cast(movieID int) (Collection[domain.CastMember], bool) {
	return s.cast.get(CastKey(movieID))
}

func (s *Service) Trailers(movieID int) (Collection[domain.Trailer], bool) {
	return s.trailers.get(TrailersKey(movieID))
}

func (s *Service) Reviews(movieID int) (Collection[domain.Review], bool) {
	return s.reviews.get(ReviewsKey(movieID))
}

// SetFilters merges patch into the shared filter predicate.
func (s *Service) SetFilters(patch FilterPatch) {
	s.mu.Lock()
	s.filters = s.filters.merge(patch)
	s.mu.Unlock()
}

// ResetFilters clears every filter constraint.
func (s *Service) ResetFilters() {
	s.mu.Lock()
	s.filters = Filters{}
	s.mu.Unlock()
}

// Filters returns the current predicate.
func (s *Service) Filters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// FilteredResults applies the filters to the active search collection.
func (s *Service) FilteredResults() []domain.Movie {
	s.mu.RLock()
	query, filters := s.activeQuery, s.filters
	s.mu.RUnlock()

	if query == "" {
		return nil
	}
	coll, _ := s.movies.get(SearchKey(query))
	return applyFilters(coll.Items, filters)
}

// NeedsMoreSearchResults reports whether the active search can still grow and
// its filtered view holds fewer than threshold items.
func (s *Service) NeedsMoreSearchResults(threshold int) bool {
	query, ok := s.ActiveQuery()
	if !ok {
		return false
	}
	coll, _ := s.movies.get(SearchKey(query))
	return coll.HasMore && len(s.FilteredResults()) < threshold
}

// FetchGenres returns the genre list, fetching it once.
func (s *Service) FetchGenres(ctx context.Context) ([]domain.Genre, error) {
	s.mu.RLock()
	cached := s.genres
	s.mu.RUnlock()
	if cached != nil {
		return append([]domain.Genre(nil), cached...), nil
	}

	genres, err := s.client.GetGenres(ctx)
	if err != nil {
		s.logger.Error("failed to fetch genres", "error", err)
		return nil, err
	}
	if genres == nil {
		genres = []domain.Genre{}
	}

	s.mu.Lock()
	s.genres = genres
	s.mu.Unlock()
	s.logger.Debug("fetched genres", "count", len(genres))
	return append([]domain.Genre(nil), genres...), nil
}

// Genres returns the cached genre list.
func (s *Service) Genres() []domain.Genre {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Genre(nil), s.genres...)
}

// Reset drops every cached collection, entity and filter. The persistent
// movie store is left alone.
func (s *Service) Reset() {
	s.mu.Lock()
	s.activeQuery = ""
	s.filters = Filters{}
	s.genres = nil
	s.mu.Unlock()

	all := func(Key) bool { return true }
	s.movies.drop(all)
	s.cast.drop(all)
	s.trailers.drop(all)
	s.reviews.drop(all)

	s.entityMu.Lock()
	s.entities = make(map[int]*domain.Movie)
	s.entityErr = nil
	s.entityMu.Unlock()
}
