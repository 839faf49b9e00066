package item

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Key is a key press with its modifiers.
type Key struct {
	Name string
	Ctrl bool
	Meta bool
}

// IsCommitKey reports whether k saves the edit: enter held with control or
// command. Plain enter stays a newline for multi-line fields.
func IsCommitKey(k Key) bool {
	return k.Name == "enter" && (k.Ctrl || k.Meta)
}

// HandleKey commits on the commit shortcut while editing. The second result
// reports whether the key was consumed.
func (c *Controller) HandleKey(k Key) (tea.Cmd, bool) {
	if c.state != Editing || !IsCommitKey(k) {
		return nil, false
	}
	return c.Commit(), true
}

// KeyFromTea translates a terminal key press. Terminals report
// option/alt+enter as an enter with Alt set, which stands in for command.
func KeyFromTea(msg tea.KeyMsg) Key {
	if msg.Type == tea.KeyEnter {
		return Key{Name: "enter", Meta: msg.Alt}
	}
	return Key{Name: msg.String(), Meta: msg.Alt}
}
