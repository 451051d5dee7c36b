package tui

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/cinesync/internal/catalog"
	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/gateway"
	"github.com/mmcdole/cinesync/internal/notify"
	"github.com/mmcdole/cinesync/internal/scroll"
	"github.com/mmcdole/cinesync/internal/session"
	"github.com/mmcdole/cinesync/internal/tui/styles"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateSearching
	StateDetails
)

// ChromeHeight is the number of rows used by header and footer
const ChromeHeight = 3

// feed is the collection currently on screen. It is shared with the scroll
// controller, which runs outside the Bubble Tea loop.
type feed struct {
	mu     sync.Mutex
	key    catalog.Key
	search bool
}

func (f *feed) current() (catalog.Key, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key, f.search
}

func (f *feed) set(key catalog.Key, search bool) {
	f.mu.Lock()
	f.key, f.search = key, search
	f.mu.Unlock()
}

// Options wires the model to the core services.
type Options struct {
	Catalog         *catalog.Service
	Session         *session.Store
	Events          Events
	ScarceThreshold int // filtered search keeps loading below this many results
	Logger          *slog.Logger
}

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	State ApplicationState
	Ready bool

	// Services
	CatalogSvc *catalog.Service
	SessionSvc *session.Store

	// UI Components
	Input   textinput.Model
	Spinner spinner.Model

	// Data
	Genres     []domain.Genre
	GenreIndex int // -1 shows the popular feed
	Items      []domain.Movie
	HasMore    bool
	Loading    bool
	User       *domain.User
	Details    *domain.Movie
	Cast       []domain.CastMember
	Trailers   []domain.Trailer
	Reviews    []domain.Review
	Messages   []notify.Message

	// Dimensions
	Width  int
	Height int
	Cursor int
	Offset int

	// UI state
	StatusMsg     string
	StatusIsErr   bool
	LoginRequired bool

	feed     *feed
	sentinel *scroll.Sentinel
	scroller *scroll.Controller
	events   Events
	scarce   int
	logger   *slog.Logger
}

// NewModel creates a new application model
func NewModel(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scarce := opts.ScarceThreshold
	if scarce <= 0 {
		scarce = 10
	}

	ti := textinput.New()
	ti.Placeholder = "Search movies..."
	ti.Prompt = "/ "
	ti.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.AccentStyle

	m := Model{
		State:      StateBrowsing,
		CatalogSvc: opts.Catalog,
		SessionSvc: opts.Session,
		Input:      ti,
		Spinner:    sp,
		GenreIndex: -1,
		Loading:    true,
		feed:       &feed{key: catalog.PopularKey()},
		sentinel:   &scroll.Sentinel{},
		events:     opts.Events,
		scarce:     scarce,
		logger:     logger,
	}

	svc, f, events := opts.Catalog, m.feed, opts.Events
	m.scroller = scroll.NewController(m.sentinel, func(ctx context.Context) error {
		key, search := f.current()
		if search {
			_, err := svc.FetchMoreSearch(ctx)
			return err
		}
		_, err := svc.FetchPage(ctx, key, 0)
		return err
	}, scroll.Options{
		ShouldListen: func() bool {
			key, search := f.current()
			if search && !svc.Filters().IsZero() {
				return svc.NeedsMoreSearchResults(scarce)
			}
			coll, ok := svc.Collection(key)
			return ok && coll.Page > 0 && coll.HasMore
		},
		OnSettled: func(err error) {
			events.send(PageSettledMsg{Err: err})
		},
		Logger: logger,
	})
	return m
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	m.scroller.Start(context.Background())
	return tea.Batch(
		LoadPageCmd(m.CatalogSvc, catalog.PopularKey(), 1),
		LoadGenresCmd(m.CatalogSvc),
		LoadProfileCmd(m.SessionSvc),
		waitForEvent(m.events),
		m.Spinner.Tick,
	)
}

// Close stops background page loading.
func (m Model) Close() {
	m.scroller.Stop()
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.Input.Width = msg.Width - 4
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case CollectionLoadedMsg:
		key, _ := m.feed.current()
		if msg.Collection.Key == key {
			m.refreshItems()
			m.scroller.Refresh()
		}
		m.setErr(msg.Err, "loading movies")
		return m, nil

	case PageSettledMsg:
		m.refreshItems()
		m.setErr(msg.Err, "loading more")
		return m, waitForEvent(m.events)

	case MessagesChangedMsg:
		m.Messages = msg.Messages
		return m, waitForEvent(m.events)

	case LoginRequiredMsg:
		m.logger.Info("login required, leaving UI", "reason", msg.Reason)
		m.LoginRequired = true
		return m, tea.Quit

	case GenresLoadedMsg:
		m.Genres = msg.Genres
		return m, nil

	case ProfileLoadedMsg:
		m.User = msg.User
		return m, nil

	case DetailsLoadedMsg:
		m.Details = msg.Movie
		m.Cast = msg.Cast
		m.Trailers = msg.Trailers
		m.Reviews = msg.Reviews
		m.State = StateDetails
		return m, nil

	case MutationDoneMsg:
		m.User = m.SessionSvc.User()
		if errors.Is(msg.Err, domain.ErrMutationInFlight) {
			m.StatusMsg, m.StatusIsErr = "Still saving, try again in a moment", false
		}
		return m, nil

	case ErrMsg:
		m.setErr(msg.Err, msg.Context)
		return m, nil
	}

	return m, nil
}

// setErr shows err in the status line unless the bus or the login redirect
// already covers it.
func (m *Model) setErr(err error, what string) {
	if err == nil || errors.Is(err, gateway.ErrRedirecting) || errors.Is(err, context.Canceled) {
		return
	}
	m.StatusMsg = ErrMsg{Err: err, Context: what}.Error()
	m.StatusIsErr = true
}

// refreshItems re-reads the visible collection from the catalog.
func (m *Model) refreshItems() {
	key, search := m.feed.current()
	coll, _ := m.CatalogSvc.Collection(key)
	if search {
		m.Items = m.CatalogSvc.FilteredResults()
	} else {
		m.Items = coll.Items
	}
	m.HasMore = coll.HasMore
	m.Loading = coll.Loading
	m.clampCursor()
}

// switchFeed shows key and loads its first page unless it is cached.
func (m *Model) switchFeed(key catalog.Key, search bool) tea.Cmd {
	m.feed.set(key, search)
	m.Cursor, m.Offset = 0, 0
	m.StatusMsg = ""
	m.refreshItems()
	m.scroller.Refresh()

	if search {
		m.Loading = true
		return SearchCmd(m.CatalogSvc, key.Value)
	}
	if coll, ok := m.CatalogSvc.Collection(key); ok && coll.Page > 0 {
		return nil
	}
	m.Loading = true
	return LoadPageCmd(m.CatalogSvc, key, 1)
}

// listHeight is the number of rows available for movies.
func (m Model) listHeight() int {
	h := m.Height - ChromeHeight
	if h < 1 {
		return 1
	}
	return h
}

// clampCursor keeps the cursor on screen and reports whether the end of the
// list is visible to the scroll sentinel.
func (m *Model) clampCursor() {
	if m.Cursor >= len(m.Items) {
		m.Cursor = len(m.Items) - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	h := m.listHeight()
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+h {
		m.Offset = m.Cursor - h + 1
	}
	m.sentinel.SetVisible(m.Ready && m.Offset+h >= len(m.Items))
}

// selected returns the movie under the cursor.
func (m Model) selected() (domain.Movie, bool) {
	if m.State == StateDetails && m.Details != nil {
		return *m.Details, true
	}
	if m.Cursor < 0 || m.Cursor >= len(m.Items) {
		return domain.Movie{}, false
	}
	return m.Items[m.Cursor], true
}
