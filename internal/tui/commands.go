package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/cinesync/internal/catalog"
	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/session"
)

// Command factories for async operations

const requestTimeout = 30 * time.Second

// LoadPageCmd loads page of the feed at key (1 reloads, 0 means next)
func LoadPageCmd(svc *catalog.Service, key catalog.Key, page int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		coll, err := svc.FetchPage(ctx, key, page)
		return CollectionLoadedMsg{Collection: coll, Err: err}
	}
}

// SearchCmd runs a search (served from cache when the query was seen before)
func SearchCmd(svc *catalog.Service, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		coll, err := svc.Search(ctx, query)
		return CollectionLoadedMsg{Collection: coll, Err: err}
	}
}

// LoadGenresCmd loads the genre list
func LoadGenresCmd(svc *catalog.Service) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		genres, err := svc.FetchGenres(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading genres"}
		}
		return GenresLoadedMsg{Genres: genres}
	}
}

// LoadProfileCmd loads the signed-in user
func LoadProfileCmd(sess *session.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		user, err := sess.FetchProfile(ctx)
		if err != nil {
			// The bus already carries the user-facing message.
			return nil
		}
		return ProfileLoadedMsg{User: user}
	}
}

// LoadDetailsCmd loads a movie's details plus the first page of its cast,
// trailers and reviews. Sub-resource failures leave that section empty.
func LoadDetailsCmd(svc *catalog.Service, movieID int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		movie, err := svc.GetMovie(ctx, movieID)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading details"}
		}
		msg := DetailsLoadedMsg{Movie: movie}
		if cast, err := svc.FetchCast(ctx, movieID, 1); err == nil {
			msg.Cast = cast.Items
		}
		if trailers, err := svc.FetchTrailers(ctx, movieID, 1); err == nil {
			msg.Trailers = trailers.Items
		}
		if reviews, err := svc.FetchReviews(ctx, movieID, 1); err == nil {
			msg.Reviews = reviews.Items
		}
		return msg
	}
}

// ToggleListCmd flips membership of a movie in a user list
func ToggleListCmd(sess *session.Store, kind domain.ListKind, movieID int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		_, err := sess.ToggleMembership(ctx, kind, movieID)
		return MutationDoneMsg{MovieID: movieID, Err: err}
	}
}

// RateCmd sets (value > 0) or removes (value == 0) a rating
func RateCmd(sess *session.Store, movieID, value int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var err error
		if value > 0 {
			err = sess.SetRating(ctx, movieID, value)
		} else {
			err = sess.RemoveRating(ctx, movieID)
		}
		return MutationDoneMsg{MovieID: movieID, Err: err}
	}
}
