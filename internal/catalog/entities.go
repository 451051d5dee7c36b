package catalog

import (
	"context"

	"github.com/mmcdole/cinesync/internal/domain"
)

// Movie returns a cached movie without touching the network.
func (s *Service) Movie(movieID int) (*domain.Movie, bool) {
	if m, ok := s.memMovie(movieID); ok {
		return m, true
	}
	return s.promote(movieID)
}

// EntityStatus reports the shared loading flag and last error of the
// single-movie cache.
func (s *Service) EntityStatus() (loading bool, err error) {
	s.entityMu.RLock()
	defer s.entityMu.RUnlock()
	return s.entityLoading > 0, s.entityErr
}

// GetMovie returns full details for a movie, fetching on a cache miss.
func (s *Service) GetMovie(ctx context.Context, movieID int) (*domain.Movie, error) {
	if m, ok := s.Movie(movieID); ok {
		return m, nil
	}
	return s.RefetchMovie(ctx, movieID)
}

// RefetchMovie reloads a movie even when it is cached.
func (s *Service) RefetchMovie(ctx context.Context, movieID int) (*domain.Movie, error) {
	s.beginEntityLoad()
	movie, err := s.client.GetMovie(ctx, movieID)
	s.endEntityLoad(err)
	if err != nil {
		s.logger.Error("failed to fetch movie", "movieID", movieID, "error", err)
		return nil, err
	}

	s.putMovies([]domain.Movie{*movie})
	cp := *movie
	return &cp, nil
}

// FetchMoviesByIDs returns details for every id, batch-fetching only the ids
// that are not cached. Results follow the order of ids; unknown ids are
// skipped.
func (s *Service) FetchMoviesByIDs(ctx context.Context, movieIDs []int) ([]domain.Movie, error) {
	var missing []int
	seen := make(map[int]bool, len(movieIDs))
	for _, id := range movieIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := s.Movie(id); !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		s.beginEntityLoad()
		fetched, err := s.client.GetMoviesByIDs(ctx, missing)
		s.endEntityLoad(err)
		if err != nil {
			s.logger.Error("failed to batch fetch movies", "count", len(missing), "error", err)
			return nil, err
		}
		s.putMovies(fetched)
		s.logger.Debug("batch fetched movies", "requested", len(missing), "received", len(fetched))
	}

	s.entityMu.RLock()
	defer s.entityMu.RUnlock()
	out := make([]domain.Movie, 0, len(movieIDs))
	for _, id := range movieIDs {
		if m, ok := s.entities[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

// InvalidateMovie drops one movie from memory and the persistent store.
func (s *Service) InvalidateMovie(movieID int) {
	s.entityMu.Lock()
	delete(s.entities, movieID)
	s.entityMu.Unlock()
	if s.store != nil {
		s.store.InvalidateMovie(movieID)
	}
}

func (s *Service) memMovie(movieID int) (*domain.Movie, bool) {
	s.entityMu.RLock()
	defer s.entityMu.RUnlock()
	m, ok := s.entities[movieID]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// promote copies a persisted movie into memory.
func (s *Service) promote(movieID int) (*domain.Movie, bool) {
	if s.store == nil {
		return nil, false
	}
	m, ok := s.store.GetMovie(movieID)
	if !ok {
		return nil, false
	}
	s.entityMu.Lock()
	if _, exists := s.entities[movieID]; !exists {
		s.entities[movieID] = m
	}
	s.entityMu.Unlock()
	cp := *m
	return &cp, true
}

func (s *Service) putMovies(movies []domain.Movie) {
	s.entityMu.Lock()
	for i := range movies {
		m := movies[i]
		s.entities[m.ID] = &m
	}
	s.entityMu.Unlock()

	if s.store == nil {
		return
	}
	for i := range movies {
		if err := s.store.SaveMovie(&movies[i]); err != nil {
			s.logger.Error("failed to persist movie", "movieID", movies[i].ID, "error", err)
		}
	}
}

func (s *Service) beginEntityLoad() {
	s.entityMu.Lock()
	s.entityLoading++
	s.entityMu.Unlock()
}

func (s *Service) endEntityLoad(err error) {
	s.entityMu.Lock()
	s.entityLoading--
	if err == nil {
		s.entityErr = nil
	} else if recordable(err) {
		s.entityErr = err
	}
	s.entityMu.Unlock()
}
