package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

const (
	jumpKeys  = "123456789"
	cycleKeys = "!@#$%^&*("
)

type keyMap struct {
	Quit   key.Binding
	Throw  key.Binding
	Jump   key.Binding
	Cycle  key.Binding
	Status key.Binding
	Help   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Throw: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "throw top card"),
		),
		Jump: key.NewBinding(
			key.WithKeys(strings.Split(jumpKeys, "")...),
			key.WithHelp("1-9", "jump to card"),
		),
		Cycle: key.NewBinding(
			key.WithKeys(strings.Split(cycleKeys, "")...),
			key.WithHelp("shift+1-9", "cycle to card"),
		),
		Status: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "recording status"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Throw, k.Jump, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Throw, k.Jump, k.Cycle},
		{k.Status, k.Help, k.Quit},
	}
}

// cardForKey maps a digit (or its shifted symbol) in keys to a card id.
func cardForKey(keys, s string) int {
	if len(s) != 1 {
		return 0
	}
	return strings.Index(keys, s) + 1
}
