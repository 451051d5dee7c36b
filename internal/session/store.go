// Package session holds the signed-in user aggregate and applies optimistic
// list and rating mutations with rollback.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/gateway"
)

// User-facing failure messages.
const (
	msgListFailed    = "Could not update list"
	msgRatingFailed  = "Could not update rating"
	msgProfileFailed = "Could not load profile"
)

// Registrar accepts the store as the process-wide logout handler.
type Registrar interface {
	Register(h domain.SessionManager)
}

// Store is the user session store.
type Store struct {
	client   domain.AccountClient
	tokens   domain.TokenStore
	notifier domain.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	user    *domain.User
	flags   map[flagKey]*mutation
	epoch   uint64 // bumped by Logout; fences mutations that outlive a session
	loading bool
	err     error
}

var _ domain.SessionManager = (*Store)(nil)

// NewStore creates a session store and registers it with reg when non-nil.
func NewStore(client domain.AccountClient, tokens domain.TokenStore, notifier domain.Notifier, reg Registrar, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		client:   client,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
		flags:    make(map[flagKey]*mutation),
	}
	if reg != nil {
		reg.Register(s)
	}
	return s
}

// User returns a copy of the current aggregate, nil when signed out.
func (s *Store) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

// IsLoggedIn reports whether a user aggregate is loaded.
func (s *Store) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// InList reports current (possibly optimistic) membership.
func (s *Store) InList(kind domain.ListKind, movieID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil && s.user.Contains(kind, movieID)
}

// Rating returns the current (possibly optimistic) rating.
func (s *Store) Rating(movieID int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return 0, false
	}
	v, ok := s.user.Ratings[movieID]
	return v, ok
}

// Status returns the profile loading flag and last profile error.
func (s *Store) Status() (loading bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading, s.err
}

func (s *Store) notify(text string) {
	if s.notifier != nil {
		s.notifier.Show(domain.MessageError, text)
	}
}

// FetchProfile replaces the aggregate with the backend's copy.
func (s *Store) FetchProfile(ctx context.Context) (*domain.User, error) {
	s.mu.Lock()
	s.loading = true
	epoch := s.epoch
	s.mu.Unlock()

	user, err := s.client.GetProfile(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		redirect := errors.Is(err, gateway.ErrRedirecting)
		if !redirect && !errors.Is(err, context.Canceled) {
			s.err = err
		}
		s.mu.Unlock()

		if !redirect {
			s.logger.Error("failed to load profile", "error", err)
			s.notify(msgProfileFailed)
		}
		return nil, err
	}
	if epoch != s.epoch {
		s.mu.Unlock()
		return nil, gateway.ErrRedirecting
	}
	s.user = user.Clone()
	s.err = nil
	s.mu.Unlock()

	s.logger.Debug("loaded profile", "userID", user.ID,
		"watchlist", len(user.Watchlist), "favorites", len(user.FavoriteMovies), "ratings", len(user.Ratings))
	return user.Clone(), nil
}

// Login exchanges credentials for a token, persists it and loads the
// profile. Validation failures come back as *gateway.Error.
func (s *Store) Login(ctx context.Context, email, password string) (*domain.User, error) {
	token, err := s.client.Login(ctx, domain.Credentials{Email: email, Password: password})
	if err != nil {
		s.logger.Warn("login failed", "email", email, "error", err)
		return nil, err
	}
	if err := s.tokens.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}
	return s.FetchProfile(ctx)
}

// UpdateProfile applies a partial profile update and stores the result.
func (s *Store) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.User, error) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil, domain.ErrNotLoggedIn
	}
	epoch := s.epoch
	s.mu.Unlock()

	user, err := s.client.UpdateProfile(ctx, patch)
	if err != nil {
		if !errors.Is(err, gateway.ErrRedirecting) {
			s.logger.Warn("profile update rejected", "error", err)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return nil, gateway.ErrRedirecting
	}
	s.user = user.Clone()
	return user.Clone(), nil
}

// Logout clears the token and every trace of the signed-in user.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.user = nil
	s.flags = make(map[flagKey]*mutation)
	s.epoch++
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	s.logger.Info("logged out")
	if err := s.tokens.ClearToken(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
