package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Cancel key.Binding
}

var keys = keyMap{
	Cancel: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/ctrl+c", "cancel"),
	),
}
