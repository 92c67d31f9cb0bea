package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/signx/internal/labels"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF4D4D", "#FFA500", "#626262")

// struct Palette is a small stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	box   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(h)).
			Padding(0, 1),
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

// statusStyle picks the color for one row of a comparison.
func (p *Palette) statusStyle(s labels.Status) lipgloss.Style {
	switch s {
	case labels.Both:
		return p.ok
	case labels.ExpectedOnly:
		return p.err
	default:
		return p.warn
	}
}
