package catalog

import (
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/cinesync/internal/domain"
)

// Filters is the client-side predicate applied to search results.
// Zero values mean "no constraint".
type Filters struct {
	GenreID   int
	MinRating float64
	MaxRating float64
	MinYear   int
	MaxYear   int
	Title     string // fuzzy title match
}

// FilterPatch updates a subset of Filters; nil fields are left untouched.
type FilterPatch struct {
	GenreID   *int
	MinRating *float64
	MaxRating *float64
	MinYear   *int
	MaxYear   *int
	Title     *string
}

func (f Filters) merge(p FilterPatch) Filters {
	if p.GenreID != nil {
		f.GenreID = *p.GenreID
	}
	if p.MinRating != nil {
		f.MinRating = *p.MinRating
	}
	if p.MaxRating != nil {
		f.MaxRating = *p.MaxRating
	}
	if p.MinYear != nil {
		f.MinYear = *p.MinYear
	}
	if p.MaxYear != nil {
		f.MaxYear = *p.MaxYear
	}
	if p.Title != nil {
		f.Title = *p.Title
	}
	return f
}

// IsZero reports whether no constraint is set.
func (f Filters) IsZero() bool { return f == Filters{} }

// Match reports whether the movie satisfies every set constraint.
func (f Filters) Match(m domain.Movie) bool {
	if f.GenreID != 0 && !m.HasGenre(f.GenreID) {
		return false
	}
	if f.MinRating > 0 && m.Rating < f.MinRating {
		return false
	}
	if f.MaxRating > 0 && m.Rating > f.MaxRating {
		return false
	}
	if f.MinYear > 0 || f.MaxYear > 0 {
		year := m.Year()
		if year == 0 {
			return false
		}
		if f.MinYear > 0 && year < f.MinYear {
			return false
		}
		if f.MaxYear > 0 && year > f.MaxYear {
			return false
		}
	}
	if f.Title != "" && !fuzzy.MatchFold(f.Title, m.Title) {
		return false
	}
	return true
}

func applyFilters(items []domain.Movie, f Filters) []domain.Movie {
	out := make([]domain.Movie, 0, len(items))
	for _, m := range items {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out
}
