package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/cinesync/internal/catalog"
	"github.com/mmcdole/cinesync/internal/domain"
)

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.State {
	case StateSearching:
		return m.handleSearchKeys(msg)
	case StateDetails:
		if key.Matches(msg, Keys.Escape, Keys.Enter) {
			m.State = StateBrowsing
			m.Details, m.Cast, m.Trailers, m.Reviews = nil, nil, nil, nil
			return m, nil
		}
		if cmd, ok := m.mutationKey(msg); ok {
			return m, cmd
		}
		if key.Matches(msg, Keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	if cmd, ok := m.mutationKey(msg); ok {
		return m, cmd
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Up):
		m.Cursor--
	case key.Matches(msg, Keys.Down):
		m.Cursor++
	case key.Matches(msg, Keys.PageUp):
		m.Cursor -= m.listHeight()
	case key.Matches(msg, Keys.PageDown):
		m.Cursor += m.listHeight()
	case key.Matches(msg, Keys.Home):
		m.Cursor = 0
	case key.Matches(msg, Keys.End):
		m.Cursor = len(m.Items) - 1

	case key.Matches(msg, Keys.Search):
		m.State = StateSearching
		m.Input.SetValue("")
		m.Input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, Keys.CycleGenre):
		if _, search := m.feed.current(); search {
			return m, nil
		}
		m.GenreIndex++
		if m.GenreIndex >= len(m.Genres) {
			m.GenreIndex = -1
		}
		return m, m.switchFeed(m.browseKey(), false)

	case key.Matches(msg, Keys.Refresh):
		current, _ := m.feed.current()
		m.Loading = true
		m.StatusMsg = ""
		// After a failed page, retry it and keep what is loaded. Otherwise
		// page 1 reloads; search goes through the pager to skip its cache.
		if coll, ok := m.CatalogSvc.Collection(current); ok && coll.Err != nil && coll.Page > 0 {
			return m, LoadPageCmd(m.CatalogSvc, current, 0)
		}
		return m, LoadPageCmd(m.CatalogSvc, current, 1)

	case key.Matches(msg, Keys.Enter):
		if movie, ok := m.selected(); ok {
			return m, LoadDetailsCmd(m.CatalogSvc, movie.ID)
		}
		return m, nil

	case key.Matches(msg, Keys.Escape):
		if _, search := m.feed.current(); search {
			m.CatalogSvc.ClearSearch()
			return m, m.switchFeed(m.browseKey(), false)
		}
		m.StatusMsg = ""
		return m, nil

	default:
		return m, nil
	}

	m.clampCursor()
	return m, nil
}

// handleSearchKeys routes keys to the search input until it is submitted or
// dismissed.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		query := strings.TrimSpace(m.Input.Value())
		m.Input.Blur()
		m.State = StateBrowsing
		if query == "" {
			return m, nil
		}
		return m, m.switchFeed(catalog.SearchKey(query), true)

	case tea.KeyEsc:
		m.Input.Blur()
		m.State = StateBrowsing
		return m, nil

	case tea.KeyCtrlC:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// mutationKey handles the list and rating keys for the selected movie.
func (m Model) mutationKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	var kind domain.ListKind
	switch {
	case key.Matches(msg, Keys.ToggleFavorite):
		kind = domain.ListFavorites
	case key.Matches(msg, Keys.ToggleWatch):
		kind = domain.ListWatchlist
	case key.Matches(msg, Keys.Rate):
		movie, ok := m.selected()
		if !ok {
			return nil, true
		}
		value := int(msg.Runes[0] - '0')
		if value == 0 {
			value = 10
		}
		return RateCmd(m.SessionSvc, movie.ID, value), true
	case key.Matches(msg, Keys.RemoveRating):
		movie, ok := m.selected()
		if !ok {
			return nil, true
		}
		return RateCmd(m.SessionSvc, movie.ID, 0), true
	default:
		return nil, false
	}

	movie, ok := m.selected()
	if !ok {
		return nil, true
	}
	return ToggleListCmd(m.SessionSvc, kind, movie.ID), true
}

// browseKey is the collection selected by the genre cycle.
func (m Model) browseKey() catalog.Key {
	if m.GenreIndex < 0 || m.GenreIndex >= len(m.Genres) {
		return catalog.PopularKey()
	}
	return catalog.GenreKey(m.Genres[m.GenreIndex].ID)
}
