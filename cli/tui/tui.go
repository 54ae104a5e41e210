package tui

import "fmt"

// Run starts the inspect TUI for the given view type.
// Returns an error if the view type isn't supported.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return RunInspectTUI(viewType, data)
}

// IsTUISupported returns true if the view type supports TUI mode. Only the
// single-run inspect view does; --tui is not offered on any other command.
func IsTUISupported(viewType string) bool {
	return viewType == "inspect_run"
}

// SupportedTUIViews returns the list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{"inspect_run"}
}
