package tui

import "github.com/charmbracelet/lipgloss"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight = lipgloss.AdaptiveColor{Light: "#E4E4E4", Dark: "#2F2F2F"}
	accent    = lipgloss.Color("#7D56F4")

	sidebarStyle = lipgloss.NewStyle().
			Width(36).
			PaddingRight(1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(subtle)

	rowStyle         = lipgloss.NewStyle().PaddingLeft(1)
	selectedRowStyle = rowStyle.Copy().Background(highlight)
	cursorRowStyle   = rowStyle.Copy().BorderStyle(lipgloss.ThickBorder()).BorderLeft(true).BorderForeground(accent).PaddingLeft(0)
	titleStyle       = lipgloss.NewStyle().Bold(false)
	selectedTitle    = lipgloss.NewStyle().Bold(true)
	previewStyle     = lipgloss.NewStyle().Foreground(subtle)
	tagStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(accent).Padding(0, 1).MarginRight(1)

	paletteStyle = lipgloss.NewStyle().
			Width(60).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent)

	headingStyle    = lipgloss.NewStyle().Bold(true).MarginTop(1)
	optionStyle     = lipgloss.NewStyle().PaddingLeft(2)
	activeOption    = optionStyle.Copy().Background(highlight)
	hintStyle       = lipgloss.NewStyle().Foreground(subtle)
	kbdStyle        = lipgloss.NewStyle().Background(highlight).Padding(0, 1)
	infoTitleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	infoBodyStyle   = lipgloss.NewStyle().Foreground(subtle).Width(56)
	statusLineStyle = lipgloss.NewStyle().Foreground(subtle).MarginTop(1)
)
