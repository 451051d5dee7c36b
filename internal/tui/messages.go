package tui

import (
	"github.com/mmcdole/cinesync/internal/catalog"
	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/notify"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// CollectionLoadedMsg signals that a page of the visible feed landed
type CollectionLoadedMsg struct {
	Collection catalog.Collection[domain.Movie]
	Err        error
}

// PageSettledMsg is sent by the scroll controller after a triggered fetch
type PageSettledMsg struct {
	Err error
}

// GenresLoadedMsg carries the genre list used by the genre cycle
type GenresLoadedMsg struct {
	Genres []domain.Genre
}

// ProfileLoadedMsg signals that the user aggregate is available
type ProfileLoadedMsg struct {
	User *domain.User
}

// DetailsLoadedMsg carries a movie's details and the first page of each
// sub-resource
type DetailsLoadedMsg struct {
	Movie    *domain.Movie
	Cast     []domain.CastMember
	Trailers []domain.Trailer
	Reviews  []domain.Review
}

// MutationDoneMsg signals that a list or rating mutation settled
type MutationDoneMsg struct {
	MovieID int
	Err     error
}

// MessagesChangedMsg mirrors the message bus
type MessagesChangedMsg struct {
	Messages []notify.Message
}

// LoginRequiredMsg signals that the session ended and the user must log in
type LoginRequiredMsg struct {
	Reason string
}
