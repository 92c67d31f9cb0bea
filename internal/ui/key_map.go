package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	toggle   key.Binding
	next     key.Binding
	pick     key.Binding
	submit   key.Binding
	back     key.Binding
	download key.Binding
	open     key.Binding
	reset    key.Binding
	quit     key.Binding
	exit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		toggle:   key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "toggle")),
		next:     key.NewBinding(key.WithKeys("enter", "tab"), key.WithHelp("enter", "next")),
		pick:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose file")),
		submit:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "process video")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		download: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
		open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		reset:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "new video")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		exit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.toggle, k.next},
		{k.pick, k.submit, k.back},
		{k.download, k.open, k.reset, k.quit},
	}
}
