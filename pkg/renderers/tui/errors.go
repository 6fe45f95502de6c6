package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrNoChoice is returned when a driver answers a select prompt with an
	// index outside the offered options.
	ErrNoChoice = errors.New("tui: no option selected")
)
