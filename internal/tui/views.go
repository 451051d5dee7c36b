package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/tui/styles"
)

// View renders the UI
func (m Model) View() string {
	if !m.Ready {
		return m.Spinner.View() + " Loading..."
	}

	var body string
	if m.State == StateDetails && m.Details != nil {
		body = m.renderDetails()
	} else {
		body = m.renderList()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		lipgloss.NewStyle().Height(m.listHeight()).MaxHeight(m.listHeight()).Render(body),
		m.renderFooter(),
	)
}

func (m Model) feedTitle() string {
	key, search := m.feed.current()
	if search {
		title := fmt.Sprintf("Search: %q", key.Value)
		if f := m.CatalogSvc.Filters(); !f.IsZero() {
			title += " (filtered)"
		}
		return title
	}
	if m.GenreIndex >= 0 && m.GenreIndex < len(m.Genres) {
		return m.Genres[m.GenreIndex].Name
	}
	return "Popular"
}

func (m Model) renderHeader() string {
	left := styles.TitleStyle.Render("cinesync") + "  " + styles.AccentStyle.Render(m.feedTitle())
	right := ""
	if m.User != nil {
		right = styles.SubtitleStyle.Render(m.User.Name)
	}
	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return styles.HeaderStyle.Width(m.Width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderList() string {
	if len(m.Items) == 0 {
		switch {
		case m.Loading:
			return styles.DimStyle.Render("  " + m.Spinner.View() + " Loading movies...")
		case m.State == StateSearching:
			return ""
		default:
			return styles.DimStyle.Render("  No movies")
		}
	}

	h := m.listHeight()
	end := m.Offset + h
	if end > len(m.Items) {
		end = len(m.Items)
	}

	rows := make([]string, 0, h)
	for i := m.Offset; i < end; i++ {
		rows = append(rows, m.renderMovieRow(m.Items[i], i == m.Cursor))
	}
	if end == len(m.Items) && len(rows) < h && m.HasMore {
		rows = append(rows, styles.DimStyle.Render("  "+m.Spinner.View()+" more..."))
	}
	return strings.Join(rows, "\n")
}

// marks renders the list membership column for a movie.
func (m Model) marks(movieID int) string {
	mark := func(kind domain.ListKind, on string) string {
		switch {
		case m.SessionSvc.Pending(kind, movieID):
			return styles.PendingMark
		case m.SessionSvc.InList(kind, movieID):
			return on
		default:
			return " "
		}
	}
	return mark(domain.ListFavorites, styles.FavoriteMark) + mark(domain.ListWatchlist, styles.WatchlistMark)
}

func (m Model) userRating(movieID int) string {
	if m.SessionSvc.RatingPending(movieID) {
		return styles.PendingMark
	}
	if v, ok := m.SessionSvc.Rating(movieID); ok {
		return styles.AccentStyle.Render(fmt.Sprintf("★%d", v))
	}
	return ""
}

func (m Model) renderMovieRow(movie domain.Movie, selected bool) string {
	title := movie.Title
	if y := movie.Year(); y > 0 {
		title = fmt.Sprintf("%s (%d)", movie.Title, y)
	}
	meta := fmt.Sprintf("%4.1f", movie.Rating)
	if r := m.userRating(movie.ID); r != "" {
		meta += " " + r
	}

	titleWidth := m.Width - lipgloss.Width(meta) - 8
	title = truncate(title, titleWidth)
	pad := titleWidth - lipgloss.Width(title)
	if pad < 1 {
		pad = 1
	}

	line := fmt.Sprintf(" %s %s%s%s ", m.marks(movie.ID), title, strings.Repeat(" ", pad), meta)
	if selected {
		return styles.HighlightStyle.Width(m.Width).Render(line)
	}
	return line
}

func (m Model) renderDetails() string {
	d := m.Details
	width := m.Width - 4

	var b strings.Builder
	title := d.Title
	if y := d.Year(); y > 0 {
		title = fmt.Sprintf("%s (%d)", d.Title, y)
	}
	b.WriteString(styles.TitleStyle.Render(title) + " " + m.marks(d.ID) + "\n")

	var info []string
	if rt := d.FormattedRuntime(); rt != "" {
		info = append(info, rt)
	}
	info = append(info, fmt.Sprintf("%.1f/10 (%d votes)", d.Rating, d.VoteCount))
	if r := m.userRating(d.ID); r != "" {
		info = append(info, "you: "+r)
	}
	b.WriteString(styles.SubtitleStyle.Render(strings.Join(info, " · ")) + "\n\n")

	if d.Overview != "" {
		b.WriteString(wordWrap(d.Overview, width) + "\n\n")
	}

	if len(m.Cast) > 0 {
		b.WriteString(styles.AccentStyle.Render("Cast") + "\n")
		for i, c := range m.Cast {
			if i == 8 {
				break
			}
			line := c.Name
			if c.Character != "" {
				line += styles.DimStyle.Render(" as " + c.Character)
			}
			b.WriteString("  " + line + "\n")
		}
	}

	if len(m.Trailers) > 0 {
		b.WriteString("\n" + styles.AccentStyle.Render("Trailers") + "\n")
		for _, tr := range m.Trailers {
			b.WriteString("  " + tr.Name + styles.DimStyle.Render(" ("+tr.Site+")") + "\n")
		}
	}

	if len(m.Reviews) > 0 {
		r := m.Reviews[0]
		b.WriteString("\n" + styles.AccentStyle.Render(fmt.Sprintf("Reviews (%d)", len(m.Reviews))) + "\n")
		b.WriteString("  " + styles.SubtitleStyle.Render(r.Author) + ": " + truncate(r.Content, width-len(r.Author)-6) + "\n")
	}

	return styles.DetailStyle.Render(b.String())
}

func (m Model) renderFooter() string {
	if m.State == StateSearching {
		return styles.FooterStyle.Render(m.Input.View())
	}

	var status string
	switch {
	case len(m.Messages) > 0:
		msg := m.Messages[len(m.Messages)-1]
		switch msg.Kind {
		case domain.MessageError:
			status = styles.ErrorStyle.Render(msg.Text)
		case domain.MessageSuccess:
			status = styles.SuccessStyle.Render(msg.Text)
		default:
			status = styles.InfoStyle.Render(msg.Text)
		}
	case m.StatusMsg != "" && m.StatusIsErr:
		status = styles.ErrorStyle.Render(m.StatusMsg)
	case m.StatusMsg != "":
		status = m.StatusMsg
	case m.Loading:
		status = m.Spinner.View() + " Loading"
	default:
		status = styles.DimStyle.Render(fmt.Sprintf("%d movies", len(m.Items)))
	}

	return styles.FooterStyle.Render(status + "  " + styles.DimStyle.Render(m.helpLine()))
}

func (m Model) helpLine() string {
	bindings := []key.Binding{Keys.Search, Keys.CycleGenre, Keys.ToggleFavorite, Keys.ToggleWatch, Keys.Rate, Keys.Quit}
	if m.State == StateDetails {
		bindings = []key.Binding{Keys.Escape, Keys.ToggleFavorite, Keys.ToggleWatch, Keys.Rate, Keys.RemoveRating}
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

// truncate shortens s to width cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

// wordWrap wraps text to the specified width
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		wordLen := lipgloss.Width(word)
		if lineLen+wordLen+1 > width && lineLen > 0 {
			result.WriteString("\n")
			lineLen = 0
		}
		if i > 0 && lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}
		result.WriteString(word)
		lineLen += wordLen
	}
	return result.String()
}
