package tui

// Key bindings
const (
	KeyQuit  = "q"
	KeyCtrlC = "ctrl+c"
)

// HelpView renders the help bar shown at the bottom of the screen.
func HelpView() string {
	return StyleHelp.Render(" q: quit")
}
