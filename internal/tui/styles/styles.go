package styles

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Amber      = lipgloss.Color("#E5A00D")
	SlateDark  = lipgloss.Color("#1F2937")
	SlateLight = lipgloss.Color("#374151")
	DimGray    = lipgloss.Color("#6B7280")
	LightGray  = lipgloss.Color("#9CA3AF")
	White      = lipgloss.Color("#F9FAFB")
	Green      = lipgloss.Color("#10B981")
	Red        = lipgloss.Color("#EF4444")
	Blue       = lipgloss.Color("#3B82F6")
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	AccentStyle = lipgloss.NewStyle().
			Foreground(Amber)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green)

	InfoStyle = lipgloss.NewStyle().
			Foreground(Blue)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(SlateLight).
			Bold(true)
)

// Raw membership markers (unstyled)
const (
	FavoriteChar  = "♥"
	WatchlistChar = "+"
	PendingChar   = "…"
)

// Pre-rendered membership markers
var (
	FavoriteMark  = lipgloss.NewStyle().Foreground(Red).Render(FavoriteChar)
	WatchlistMark = lipgloss.NewStyle().Foreground(Blue).Render(WatchlistChar)
	PendingMark   = DimStyle.Render(PendingChar)
)

// Panel styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(SlateDark).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(LightGray).
			Padding(0, 1)

	DetailStyle = lipgloss.NewStyle().
			Padding(1, 2)
)
