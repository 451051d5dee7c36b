package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Movie is a single catalog entry as returned by the backend.
type Movie struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Overview    string    `json:"overview,omitempty"`
	ReleaseDate string    `json:"release_date,omitempty"` // YYYY-MM-DD
	GenreIDs    []int     `json:"genre_ids,omitempty"`
	Rating      float64   `json:"vote_average"` // 0-10 community rating
	VoteCount   int       `json:"vote_count,omitempty"`
	Runtime     int       `json:"runtime,omitempty"` // minutes, detail responses only
	PosterPath  string    `json:"poster_path,omitempty"`
	FetchedAt   time.Time `json:"fetched_at,omitempty"`
}

func (m Movie) GetID() string { return strconv.Itoa(m.ID) }

// Year returns the release year or 0 when unknown.
func (m Movie) Year() int {
	if len(m.ReleaseDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(m.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return y
}

// HasGenre reports whether the movie is tagged with the genre.
func (m Movie) HasGenre(genreID int) bool {
	for _, g := range m.GenreIDs {
		if g == genreID {
			return true
		}
	}
	return false
}

// FormattedRuntime returns the runtime in a human-readable format
func (m Movie) FormattedRuntime() string {
	if m.Runtime <= 0 {
		return ""
	}
	h := m.Runtime / 60
	mins := m.Runtime % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// Genre labels a genre id.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (g Genre) GetID() string { return strconv.Itoa(g.ID) }

// CastMember is one credited performer of a movie.
type CastMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character,omitempty"`
	Order       int    `json:"order"`
	ProfilePath string `json:"profile_path,omitempty"`
}

func (c CastMember) GetID() string { return strconv.Itoa(c.ID) }

// Trailer is a video attached to a movie.
type Trailer struct {
	Key  string `json:"key"`  // provider video id
	Site string `json:"site"` // e.g. "YouTube"
	Name string `json:"name"`
}

func (t Trailer) GetID() string { return t.Site + ":" + t.Key }

// Review is a user review of a movie.
type Review struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Rating    float64   `json:"rating,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Review) GetID() string { return r.ID }

// ListKind identifies a user-owned movie set.
type ListKind string

const (
	ListWatchlist ListKind = "watchlist"
	ListFavorites ListKind = "favorites"
)

// Valid reports whether k is a known list kind.
func (k ListKind) Valid() bool {
	return k == ListWatchlist || k == ListFavorites
}

// User is the signed-in user aggregate.
type User struct {
	ID             int         `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	AvatarURL      string      `json:"avatar_url,omitempty"`
	Watchlist      []int       `json:"watchlist"`
	FavoriteMovies []int       `json:"favoriteMovies"`
	Ratings        map[int]int `json:"ratings"` // movie id -> 1..10
}

// List returns the ids held in the given list.
func (u *User) List(kind ListKind) []int {
	switch kind {
	case ListWatchlist:
		return u.Watchlist
	case ListFavorites:
		return u.FavoriteMovies
	default:
		return nil
	}
}

// Contains reports whether movieID is a member of the list.
func (u *User) Contains(kind ListKind, movieID int) bool {
	for _, id := range u.List(kind) {
		if id == movieID {
			return true
		}
	}
	return false
}

// SetMember adds or removes movieID, preserving the order of the other ids.
// Adding appends; adding an existing member is a no-op.
func (u *User) SetMember(kind ListKind, movieID int, member bool) {
	ids := u.List(kind)
	out := make([]int, 0, len(ids)+1)
	found := false
	for _, id := range ids {
		if id == movieID {
			found = true
			if !member {
				continue
			}
		}
		out = append(out, id)
	}
	if member && !found {
		out = append(out, movieID)
	}

	switch kind {
	case ListWatchlist:
		u.Watchlist = out
	case ListFavorites:
		u.FavoriteMovies = out
	}
}

// Clone returns a deep copy safe to hand to readers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Watchlist = append([]int(nil), u.Watchlist...)
	c.FavoriteMovies = append([]int(nil), u.FavoriteMovies...)
	c.Ratings = make(map[int]int, len(u.Ratings))
	for k, v := range u.Ratings {
		c.Ratings[k] = v
	}
	return &c
}

// ProfilePatch carries editable profile fields; nil fields are left untouched.
type ProfilePatch struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
