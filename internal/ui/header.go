package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header represents a command header with title, command, and parameters.
// The serve command prints one before the server starts.
type Header struct {
	Title   string  // e.g., "PHOTORELAY SERVER"
	Command string  // e.g., "photorelay serve"
	Params  []Field // e.g., {"Address", "0.0.0.0:8888"}, {"Mode", "disk"}
	Width   int     // Terminal width for responsive rendering
	Plain   bool    // Render without borders or colours
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params ...Field) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
		Plain:   !IsInteractive(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	if h.Plain {
		lines := append([]string{strings.ToUpper(h.Title), h.Command}, plainFields(h.Params)...)
		return strings.Join(lines, "\n")
	}

	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	topSection := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	dividerWidth := width - 6 // Account for border and padding
	divider := lipgloss.NewStyle().PaddingLeft(2).Render(RenderHorizontalDivider(dividerWidth, "─"))

	content := topSection
	if len(h.Params) > 0 {
		params := strings.Join(renderFields(h.Params, HeaderParamKeyStyle, HeaderParamValueStyle, ""), "\n")
		content = lipgloss.JoinVertical(lipgloss.Left, topSection, divider, params)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2). // Account for border characters
		Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
