// SPDX-License-Identifier: MIT
package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	noteStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder())

	inTuneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true)
	offTuneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E8A33D"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7A7A7A"))
)
