package catalog

import (
	"strings"

	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/sahilm/fuzzy"
)

// Ranked is a quick-find hit with the title positions that matched.
type Ranked struct {
	Movie          domain.Movie
	MatchedIndexes []int
	Score          int
}

// movieIndex implements fuzzy.Source over lowercased titles
type movieIndex struct {
	movies      []domain.Movie
	lowerTitles []string
}

func (idx *movieIndex) String(i int) string { return idx.lowerTitles[i] }
func (idx *movieIndex) Len() int { return len(idx.movies) }

// RankCached fuzzy-ranks every movie seen so far (collections and the
// single-movie cache) against query, best match first.
func (s *Service) RankCached(query string) []Ranked {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	idx := &movieIndex{}
	seen := make(map[int]bool)
	add := func(m domain.Movie) {
		if seen[m.ID] {
			return
		}
		seen[m.ID] = true
		idx.movies = append(idx.movies, m)
		idx.lowerTitles = append(idx.lowerTitles, strings.ToLower(m.Title))
	}

	s.movies.each(func(_ Key, items []domain.Movie) {
		for _, m := range items {
			add(m)
		}
	})
	s.entityMu.RLock()
	for _, m := range s.entities {
		add(*m)
	}
	s.entityMu.RUnlock()

	matches := fuzzy.FindFrom(strings.ToLower(query), idx)
	out := make([]Ranked, len(matches))
	for i, match := range matches {
		out[i] = Ranked{
			Movie:          idx.movies[match.Index],
			MatchedIndexes: match.MatchedIndexes,
			Score:          match.Score,
		}
	}
	return out
}
