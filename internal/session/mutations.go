package session

import (
	"context"
	"errors"

	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/gateway"
)

type phase int

const (
	phaseIdle phase = iota
	phasePending
	phaseReverting
)

// ratingsScope keys rating mutations alongside list mutations.
const ratingsScope = "ratings"

type flagKey struct {
	scope   string // list kind or ratingsScope
	movieID int
}

// mutation is the per-entity optimistic update state. previous* hold the
// value to restore on failure.
type mutation struct {
	phase          phase
	previousMember bool
	previousRating int // 0 means unrated
}

// Pending reports whether a list mutation for the movie is in flight.
func (s *Store) Pending(kind domain.ListKind, movieID int) bool {
	return s.pending(flagKey{scope: string(kind), movieID: movieID})
}

// RatingPending reports whether a rating mutation for the movie is in flight.
func (s *Store) RatingPending(movieID int) bool {
	return s.pending(flagKey{scope: ratingsScope, movieID: movieID})
}

func (s *Store) pending(key flagKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.flags[key]
	return ok && m.phase != phaseIdle
}

// beginLocked moves key from Idle to Pending.
// Must be called with s.mu held.
func (s *Store) beginLocked(key flagKey, m *mutation) error {
	if s.user == nil {
		return domain.ErrNotLoggedIn
	}
	if cur, ok := s.flags[key]; ok && cur.phase != phaseIdle {
		return domain.ErrMutationInFlight
	}
	m.phase = phasePending
	s.flags[key] = m
	return nil
}

// finish settles a mutation. On an ordinary failure it runs revert and posts
// text. Redirects leave nothing to revert: logout already reset the user.
func (s *Store) finish(key flagKey, epoch uint64, err error, revert func(u *domain.User), text string) {
	s.mu.Lock()
	current := epoch == s.epoch
	reverted := false
	if err != nil && !errors.Is(err, gateway.ErrRedirecting) && current && s.user != nil {
		if m, ok := s.flags[key]; ok {
			m.phase = phaseReverting
		}
		revert(s.user)
		reverted = true
	}
	if current {
		delete(s.flags, key)
	}
	s.mu.Unlock()

	if !reverted {
		return
	}
	s.logger.Warn("optimistic update rolled back", "scope", key.scope, "movieID", key.movieID, "error", err)
	if !errors.Is(err, context.Canceled) {
		s.notify(text)
	}
}

// ToggleMembership flips membership of movieID in the list, optimistically.
// It returns the membership requested by the toggle. A second toggle of the
// same movie and list while the first is pending fails with
// domain.ErrMutationInFlight.
func (s *Store) ToggleMembership(ctx context.Context, kind domain.ListKind, movieID int) (bool, error) {
	if !kind.Valid() {
		return false, domain.ErrUnknownList
	}
	key := flagKey{scope: string(kind), movieID: movieID}

	s.mu.Lock()
	m := &mutation{}
	if err := s.beginLocked(key, m); err != nil {
		s.mu.Unlock()
		return false, err
	}
	previous := s.user.Contains(kind, movieID)
	m.previousMember = previous
	member := !previous
	s.user.SetMember(kind, movieID, member)
	epoch := s.epoch
	s.mu.Unlock()

	var err error
	if member {
		err = s.client.AddToList(ctx, kind, movieID)
	} else {
		err = s.client.RemoveFromList(ctx, kind, movieID)
	}

	s.finish(key, epoch, err, func(u *domain.User) {
		u.SetMember(kind, movieID, previous)
	}, msgListFailed)

	if err != nil {
		return previous, err
	}
	s.logger.Debug("list updated", "list", kind, "movieID", movieID, "member", member)
	return member, nil
}

// SetRating stores a 1..10 rating, optimistically.
func (s *Store) SetRating(ctx context.Context, movieID, value int) error {
	if value < 1 || value > 10 {
		return domain.ErrInvalidRating
	}
	return s.mutateRating(ctx, movieID, value)
}

// RemoveRating deletes a rating, optimistically. Removing an absent rating
// is a no-op.
func (s *Store) RemoveRating(ctx context.Context, movieID int) error {
	if _, ok := s.Rating(movieID); !ok {
		return nil
	}
	return s.mutateRating(ctx, movieID, 0)
}

// mutateRating sets (value > 0) or removes (value == 0) a rating.
func (s *Store) mutateRating(ctx context.Context, movieID, value int) error {
	key := flagKey{scope: ratingsScope, movieID: movieID}

	s.mu.Lock()
	m := &mutation{}
	if err := s.beginLocked(key, m); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.user.Ratings == nil {
		s.user.Ratings = make(map[int]int)
	}
	previous := s.user.Ratings[movieID]
	m.previousRating = previous
	if value > 0 {
		s.user.Ratings[movieID] = value
	} else {
		delete(s.user.Ratings, movieID)
	}
	epoch := s.epoch
	s.mu.Unlock()

	var err error
	if value > 0 {
		err = s.client.PutRating(ctx, movieID, value)
	} else {
		err = s.client.DeleteRating(ctx, movieID)
	}

	s.finish(key, epoch, err, func(u *domain.User) {
		if u.Ratings == nil {
			u.Ratings = make(map[int]int)
		}
		if previous > 0 {
			u.Ratings[movieID] = previous
		} else {
			delete(u.Ratings, movieID)
		}
	}, msgRatingFailed)

	if err != nil {
		return err
	}
	s.logger.Debug("rating updated", "movieID", movieID, "value", value)
	return nil
}
