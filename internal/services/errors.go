package services

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start while a window is running
	ErrAlreadyRunning = errors.New("a measurement window is already running")

	// ErrWindowTooLarge is returned when a window needs more samples than the buffer holds
	ErrWindowTooLarge = errors.New("measurement window exceeds buffer capacity")

	// ErrUnknownCommand is returned for text that matches no command
	ErrUnknownCommand = errors.New("unknown command")
)

// CommandFormatError reports a start command whose parameters cannot be parsed
type CommandFormatError struct {
	Text   string
	Reason string
}

func (e *CommandFormatError) Error() string {
	return fmt.Sprintf("malformed command %q: %s", e.Text, e.Reason)
}
