package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	Up      key.Binding // k - move up
	Down    key.Binding // j - move down
	Top     key.Binding // g - jump to top
	Bottom  key.Binding // G - jump to bottom
	Select  key.Binding // Enter - details
	Add     key.Binding // a - add config
	Edit    key.Binding // e - edit config
	Delete  key.Binding // d - delete config
	Next    key.Binding // n - select next model
	Ping    key.Binding // p - ping test
	Help    key.Binding // ? - help
	Quit    key.Binding // q - quit
	Cancel  key.Binding // Esc - cancel
	Confirm key.Binding // Enter - confirm (in form)
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Top:     key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "top")),
		Bottom:  key.NewBinding(key.WithKeys("G"), key.WithHelp("G", "bottom")),
		Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "details")),
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Next:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next model")),
		Ping:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "ping")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "cancel")),
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "confirm")),
	}
}

// ShortHelp returns short help text
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Add, k.Edit, k.Next, k.Help, k.Quit}
}

// FullHelp returns full help text
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Select, k.Add, k.Edit, k.Delete},
		{k.Next, k.Ping, k.Help, k.Quit, k.Cancel},
	}
}
