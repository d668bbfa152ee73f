package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// key is a binding: the key names it answers to and its help text
type key struct {
	names []string
	help  string
}

// matches reports whether msg is one of the binding's keys
func (k key) matches(msg tea.KeyMsg) bool {
	s := msg.String()
	for _, name := range k.names {
		if s == name {
			return true
		}
	}
	return false
}

// keyMap defines key bindings for the confirmation prompt
type keyMap struct {
	Left    key
	Right   key
	Confirm key
	Cancel  key
	Select  key
}

// shortHelp returns key bindings for the footer
func (k keyMap) shortHelp() []key {
	return []key{k.Left, k.Right, k.Confirm, k.Cancel, k.Select}
}

// helpView renders the footer
func (k keyMap) helpView() string {
	parts := make([]string, 0, 5)
	for _, b := range k.shortHelp() {
		parts = append(parts, "["+b.help+"]")
	}
	return strings.Join(parts, " ")
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:    key{names: []string{"left", "h", "shift+tab"}, help: "←/h"},
		Right:   key{names: []string{"right", "l", "tab"}, help: "→/l"},
		Confirm: key{names: []string{"y", "Y"}, help: "y confirm"},
		Cancel:  key{names: []string{"n", "N", "q", "esc", "ctrl+c"}, help: "n/esc cancel"},
		Select:  key{names: []string{"enter", " "}, help: "enter select"},
	}
}
