package widget

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tbxark/dgui/live"
)

type Theme struct {
	Header  lipgloss.Style
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Card    lipgloss.Style
	Pending lipgloss.Style
	Error   lipgloss.Style
}

func DefaultTheme() Theme {
	blue := lipgloss.Color("#3b82f6")
	gray := lipgloss.Color("#4b5563")
	amber := lipgloss.Color("#f59e0b")
	red := lipgloss.Color("#ef4444")

	return Theme{
		Header: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		Title: lipgloss.NewStyle().Bold(true).Foreground(blue),
		Muted: lipgloss.NewStyle().Foreground(gray),
		Card: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(gray).
			Padding(0, 1),
		Pending: lipgloss.NewStyle().Bold(true).Foreground(amber),
		Error:   lipgloss.NewStyle().Foreground(red),
	}
}

// RenderHeader frames a form title and description.
func (t Theme) RenderHeader(title, description string) string {
	var lines []string
	if title != "" {
		lines = append(lines, t.Title.Render(title))
	}
	if description != "" {
		lines = append(lines, t.Muted.Render(description))
	}
	if len(lines) == 0 {
		return ""
	}
	return t.Header.Render(strings.Join(lines, "\n"))
}

// RenderCard draws a live schema push card.
func (t Theme) RenderCard(card live.Card) string {
	title := t.Title.Render(card.Title)
	if card.Status != live.StatusComplete {
		title = t.Pending.Render(card.Title)
	}
	return t.Card.Render(title + "\n" + t.Muted.Render(card.Body))
}

func (t Theme) RenderIssues(text string) string {
	return t.Error.Render(text)
}
