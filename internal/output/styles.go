package output

import "github.com/charmbracelet/lipgloss"

// Color palette, 256-color codes.
const (
	colorTitle  = "81"  // cyan for scenario titles
	colorAuthor = "245" // gray secondary text
	colorTag    = "108" // muted green
	colorGold   = "220" // ratings and favorites
	colorRed    = "196" // errors
	colorYellow = "220" // warnings
	colorGreen  = "114" // success
	colorDim    = "238"
)

// Styles holds the lipgloss styles used for terminal rendering.
type Styles struct {
	Title    lipgloss.Style
	Author   lipgloss.Style
	Synopsis lipgloss.Style
	Tag      lipgloss.Style
	Rating   lipgloss.Style
	Dim      lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Orphan   lipgloss.Style
}

// DefaultStyles returns colored styles for TTY output.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorTitle)),
		Author:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorAuthor)),
		Synopsis: lipgloss.NewStyle(),
		Tag:      lipgloss.NewStyle().Foreground(lipgloss.Color(colorTag)),
		Rating:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGold)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim)),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Orphan:   lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color(colorDim)),
	}
}

// NoColorStyles returns unstyled components for pipes and NO_COLOR.
func NoColorStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle(),
		Author:   lipgloss.NewStyle(),
		Synopsis: lipgloss.NewStyle(),
		Tag:      lipgloss.NewStyle(),
		Rating:   lipgloss.NewStyle(),
		Dim:      lipgloss.NewStyle(),
		Success:  lipgloss.NewStyle(),
		Warning:  lipgloss.NewStyle(),
		Error:    lipgloss.NewStyle(),
		Orphan:   lipgloss.NewStyle(),
	}
}
