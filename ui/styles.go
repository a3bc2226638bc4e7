// Package ui is the terminal frontend: a gated page stack over the
// session, workflow and coverage layers. Pages never talk to the network
// directly; they issue commands against the injected services and render
// whatever state those expose.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sercano/qahub/coverage"
)

// Styles carries every lipgloss style the pages share.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	LogLine  lipgloss.Style
	Border   lipgloss.Style
	Help     lipgloss.Style

	BandGreen lipgloss.Style
	BandAmber lipgloss.Style
	BandRed   lipgloss.Style
}

// DefaultStyles returns the standard palette
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Subtitle: lipgloss.NewStyle().Foreground(lipgloss.Color("99")),
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Value:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")),
		LogLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Border:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		BandGreen: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		BandAmber: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		BandRed:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// BandStyle maps a coverage band to its render style
func (s Styles) BandStyle(band coverage.Band) lipgloss.Style {
	switch band {
	case coverage.BandGreen:
		return s.BandGreen
	case coverage.BandAmber:
		return s.BandAmber
	default:
		return s.BandRed
	}
}
