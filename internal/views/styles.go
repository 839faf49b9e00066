package views

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha, the subset the contact list uses.
var (
	colourRed      = lipgloss.Color("#f38ba8")
	colourPeach    = lipgloss.Color("#fab387")
	colourYellow   = lipgloss.Color("#f9e2af")
	colourGreen    = lipgloss.Color("#a6e3a1")
	colourBlue     = lipgloss.Color("#89b4fa")
	colourLavender = lipgloss.Color("#b4befe")
	colourText     = lipgloss.Color("#cdd6f4")
	colourSubtext  = lipgloss.Color("#a6adc8")
	colourOverlay  = lipgloss.Color("#7f849c")
	colourSurface1 = lipgloss.Color("#45475a")
	colourSurface0 = lipgloss.Color("#313244")
	colourBase     = lipgloss.Color("#1e1e2e")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colourBase).
			Background(colourLavender).
			Padding(0, 1)

	searchStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colourSurface1).
			Padding(0, 1)

	searchFocusedStyle = searchStyle.
				BorderForeground(colourBlue)

	addButtonStyle = lipgloss.NewStyle().
			Foreground(colourBase).
			Background(colourGreen).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Foreground(colourText).
			Padding(0, 1).
			Border(lipgloss.HiddenBorder())

	selectedItemStyle = itemStyle.
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colourBlue)

	editingItemStyle = itemStyle.
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colourPeach)

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colourText)

	sentinelStyle = nameStyle.
			Foreground(colourYellow)

	unnamedStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(colourOverlay)

	labelStyle = lipgloss.NewStyle().
			Foreground(colourOverlay).
			Width(7)

	focusedLabelStyle = labelStyle.
				Foreground(colourBlue)

	valueStyle = lipgloss.NewStyle().
			Foreground(colourSubtext)

	agoStyle = lipgloss.NewStyle().
			Foreground(colourOverlay).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colourOverlay).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colourRed).
			Padding(0, 1)

	warningStyle = lipgloss.NewStyle().
			Foreground(colourYellow).
			Padding(0, 1)

	confirmStyle = lipgloss.NewStyle().
			Foreground(colourRed).
			Bold(true).
			Background(colourSurface0).
			Padding(0, 1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(colourOverlay).
			Padding(1, 1)
)
