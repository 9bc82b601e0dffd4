package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the picker.
type keyMap struct {
	toggle   key.Binding
	moveUp   key.Binding
	moveDown key.Binding
	enter    key.Binding
	back     key.Binding
	yes      key.Binding
	no       key.Binding
	restart  key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:   key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "select")),
		moveUp:   key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
		moveDown: key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "build playlist")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no")),
		restart:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "pick again")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.enter, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.moveUp, k.moveDown},
		{k.enter, k.back, k.yes, k.no},
		{k.restart, k.quit},
	}
}
