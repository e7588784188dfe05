package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrNoOptions is returned when a select element reaches the filler
	// without options.
	ErrNoOptions = errors.New("tui: element has no options")
)
