// Package tui renders the two-button confirmation prompt in the terminal.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Lin-Jiong-HDU/qbot/internal/core/confirm"
)

// Labels returns the button captions used for a command.
func Labels(command string) (confirmLabel, cancelLabel string) {
	switch command {
	case "addkey":
		return "CONFIRM INJECTION", "CANCEL"
	default:
		return "YES", "NO"
	}
}

type model struct {
	title        string
	confirmLabel string
	cancelLabel  string
	remaining    func() time.Duration
	done         <-chan struct{}

	cursor  int // 0 confirm, 1 cancel
	choice  confirm.Button
	expired bool
	keys    keyMap
	width   int
}

// NewModel creates a prompt model. remaining reports the time left and
// done is closed when the prompt resolves on its own.
func NewModel(title, confirmLabel, cancelLabel string, remaining func() time.Duration, done <-chan struct{}) Model {
	return model{
		title:        title,
		confirmLabel: confirmLabel,
		cancelLabel:  cancelLabel,
		remaining:    remaining,
		done:         done,
		keys:         defaultKeyMap(),
	}
}

// FromPrompt creates a model for p.
func FromPrompt(p *confirm.Prompt) Model {
	yes, no := Labels(p.Command)
	return NewModel(p.Description, yes, no, p.Remaining, p.Done())
}

// Choice returns the button picked in a finished model, and false when
// the prompt expired or was left without an answer.
func Choice(m tea.Model) (confirm.Button, bool) {
	mdl, ok := m.(model)
	if !ok || mdl.choice == "" {
		return "", false
	}
	return mdl.choice, true
}

// Ask runs the prompt on the terminal and returns the chosen button.
func Ask(p *confirm.Prompt) (confirm.Button, bool, error) {
	final, err := tea.NewProgram(FromPrompt(p)).Run()
	if err != nil {
		return "", false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	b, ok := Choice(final)
	return b, ok, nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func waitDone(done <-chan struct{}) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return ExpiredMsg{}
	}
}

// Init starts the countdown
func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), waitDone(m.done))
}

// Update handles messages
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		if m.choice != "" {
			return m, nil
		}
		if m.remaining != nil && m.remaining() <= 0 {
			m.expired = true
			return m, tea.Quit
		}
		return m, tick()

	case ExpiredMsg:
		if m.choice == "" {
			m.expired = true
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.choice != "" || m.expired {
		return m, nil
	}

	switch {
	case m.keys.Left.matches(msg):
		m.cursor = 0
	case m.keys.Right.matches(msg):
		m.cursor = 1
	case m.keys.Confirm.matches(msg):
		return m.choose(confirm.ButtonConfirm)
	case m.keys.Cancel.matches(msg):
		return m.choose(confirm.ButtonCancel)
	case m.keys.Select.matches(msg):
		if m.cursor == 0 {
			return m.choose(confirm.ButtonConfirm)
		}
		return m.choose(confirm.ButtonCancel)
	}
	return m, nil
}

func (m model) choose(b confirm.Button) (tea.Model, tea.Cmd) {
	m.choice = b
	return m, tea.Quit
}

// View renders the prompt
func (m model) View() string {
	var s string
	s += warningStyle.Render("⚠️  "+m.title) + "\n\n"

	yes, no := inactiveButton, inactiveButton
	if m.cursor == 0 {
		yes = confirmButton
	} else {
		no = cancelButton
	}
	s += lipgloss.JoinHorizontal(lipgloss.Top,
		yes.Render(m.confirmLabel),
		"  ",
		no.Render(m.cancelLabel),
	) + "\n\n"

	switch {
	case m.choice == confirm.ButtonConfirm:
		s += successStyle.Render("Authorization Confirmed.") + "\n"
	case m.choice == confirm.ButtonCancel:
		s += errorStyle.Render("Aborted.") + "\n"
	case m.expired:
		s += subtleStyle.Render("Confirmation expired.") + "\n"
	default:
		s += subtleStyle.Render(fmt.Sprintf("expires in %s", m.countdown())) + "\n"
		s += statusBarStyle.Render(m.keys.helpView()) + "\n"
	}
	return s
}

func (m model) countdown() time.Duration {
	if m.remaining == nil {
		return 0
	}
	return m.remaining().Round(time.Second)
}

// Styles
var (
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	buttonBase     = lipgloss.NewStyle().Padding(0, 2).Bold(true)
	inactiveButton = buttonBase.Foreground(lipgloss.Color("252")).Background(lipgloss.Color("238"))
	confirmButton  = buttonBase.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10"))
	cancelButton   = buttonBase.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("9"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			MarginTop(1)
)
