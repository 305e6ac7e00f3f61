package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextRoute key.Binding
	NewRoute  key.Binding
	Edit      key.Binding
	Unassign  key.Binding
	Delete    key.Binding
	Reload    key.Binding
	Clear     key.Binding
	Quit      key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
}

var keys = keyMap{
	NextRoute: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next route"),
	),
	NewRoute: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new route"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Unassign: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "unassign"),
	),
	Delete: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "delete link"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Clear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "pan up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "pan down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "pan left"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "pan right"),
	),
}

// forMode disables the bindings a mode does not offer
func (k keyMap) forMode(mode string) keyMap {
	if mode != ModeRoutes {
		k.NextRoute.SetEnabled(false)
		k.NewRoute.SetEnabled(false)
	}
	return k
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextRoute, k.NewRoute, k.Edit, k.Unassign, k.Delete, k.Reload, k.Clear, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextRoute, k.NewRoute, k.Edit},
		{k.Unassign, k.Delete, k.Reload},
		{k.Up, k.Down, k.Left, k.Right},
		{k.Clear, k.Quit},
	}
}
