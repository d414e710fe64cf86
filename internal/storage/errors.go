package storage

import "fmt"

// IOError reports a failure to open, write or read a slot
type IOError struct {
	Op   string
	Slot string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Slot, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError reports a slot whose content is not a valid document
type ParseError struct {
	Slot string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Slot, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
