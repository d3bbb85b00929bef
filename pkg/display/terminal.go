package display

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/multilogue/pkg/dialogue"
)

var (
	speakerStyles = map[dialogue.Role]lipgloss.Style{
		dialogue.RoleSystem:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		dialogue.RoleUser:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		dialogue.RoleAssistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
	}
	utteranceStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// RenderTerminal lays the dialogue out for a terminal, wrapping utterances at width.
func RenderTerminal(d dialogue.Dialogue, width int) string {
	if d.IsEmpty() {
		return PickerMessage
	}

	style := utteranceStyle
	if width > 0 {
		style = style.Width(width)
	}

	blocks := make([]string, 0, len(d))
	for _, t := range d {
		speaker, ok := speakerStyles[t.Role]
		if !ok {
			speaker = speakerStyles[dialogue.RoleUser]
		}
		blocks = append(blocks, speaker.Render(t.Speaker)+"\n"+style.Render(t.Content))
	}
	return strings.Join(blocks, "\n\n")
}
