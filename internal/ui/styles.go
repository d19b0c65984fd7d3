package ui

import "github.com/charmbracelet/lipgloss/v2"

// Color constants
const (
	ColorBlack      = "0"
	ColorRed        = "1"
	ColorDarkerBlue = "4"
	ColorCyan       = "6"
	ColorGrey       = "7"
	ColorYellow     = "11"
	ColorWhite      = "15"
)

// Common styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Background(lipgloss.Color(ColorDarkerBlue)).
			Foreground(lipgloss.Color(ColorWhite)).
			Bold(true)

	TableHeaderStyle = lipgloss.NewStyle().
				Background(lipgloss.Color(ColorDarkerBlue)).
				Foreground(lipgloss.Color(ColorYellow)).
				Bold(true)

	RowStyle = lipgloss.NewStyle().
			Background(lipgloss.Color(ColorDarkerBlue)).
			Foreground(lipgloss.Color(ColorGrey))

	RowSelectedStyle = lipgloss.NewStyle().
				Background(lipgloss.Color(ColorCyan)).
				Foreground(lipgloss.Color(ColorBlack))

	StatusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color(ColorDarkerBlue)).
			Foreground(lipgloss.Color(ColorGrey))

	StatusErrorStyle = lipgloss.NewStyle().
				Background(lipgloss.Color(ColorDarkerBlue)).
				Foreground(lipgloss.Color(ColorRed)).
				Bold(true)

	// Function key bar
	FunctionKeyStyle = lipgloss.NewStyle().
				Background(lipgloss.Color(ColorBlack)).
				Padding(0, 0, 0, 1)

	FunctionKeyDescriptionStyle = lipgloss.NewStyle().
					Background(lipgloss.Color(ColorCyan)).
					Foreground(lipgloss.Color(ColorBlack)).
					Padding(0, 1, 0, 0)

	FunctionKeyBarStyle = lipgloss.NewStyle().
				Background(lipgloss.Color(ColorBlack)).
				Foreground(lipgloss.Color(ColorGrey))

	// Modal styles
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color(ColorBlack)).
			BorderBackground(lipgloss.Color(ColorCyan)).
			Background(lipgloss.Color(ColorCyan)).
			Foreground(lipgloss.Color(ColorBlack))

	ModalTitleStyle = lipgloss.NewStyle().
			Background(lipgloss.Color(ColorWhite)).
			Foreground(lipgloss.Color(ColorBlack)).
			Padding(0, 1)

	ModalItemStyle = lipgloss.NewStyle().
			Background(lipgloss.Color(ColorCyan)).
			Foreground(lipgloss.Color(ColorBlack))

	ModalItemSelectedStyle = lipgloss.NewStyle().
				Background(lipgloss.Color(ColorBlack)).
				Foreground(lipgloss.Color(ColorWhite))

	ToastStyle = lipgloss.NewStyle().
			Background(lipgloss.Color(ColorRed)).
			Foreground(lipgloss.Color(ColorWhite)).
			Padding(0, 1)
)
