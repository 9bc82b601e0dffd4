package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/conductr/internal/tasks"
)

const (
	spotifyGreen = "#1DB954"
	mint         = "#04B575"
	red          = "#FF4F4F"
	amber        = "#FFA500"
	gray         = "#626262"
)

var styles = NewPalette(spotifyGreen, mint, red, amber, gray)

// struct Palette holds the picker's named [lipgloss.Style] values
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	pick  lipgloss.Style
}

func NewPalette(accent, success, failure, warning, muted string) *Palette {
	return &Palette{
		title: NewBold(accent).MarginBottom(1),
		ok:    NewBold(success),
		err:   NewBold(failure),
		warn:  NewStyle(warning),
		help:  NewEm(muted),
		pick:  NewBold(accent),
	}
}

// step styles one line of an assembly job's step log.
func (p *Palette) step(s tasks.StepResult) string {
	line := s.Phase.String()
	if s.Message != "" {
		line += ": " + s.Message
	}
	switch {
	case s.Error != "":
		return p.err.Render("✗ " + s.Phase.String() + ": " + s.Error)
	case s.Phase == tasks.Done:
		return p.ok.Render("✓ " + line)
	default:
		return p.help.Render("• " + line)
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
