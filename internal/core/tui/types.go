package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg refreshes the countdown
type TickMsg struct{}

// ExpiredMsg is sent when the prompt resolves without an answer
type ExpiredMsg struct{}

// Model is the interface for the TUI model
type Model interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Model, tea.Cmd)
	View() string
}
