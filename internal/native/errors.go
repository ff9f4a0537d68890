package native

import (
	"errors"
	"fmt"
)

// Category classifies a native failure for logs and listeners.
type Category int

const (
	// CategoryUnknown indicates unclassified errors
	CategoryUnknown Category = iota
	// CategoryCodec indicates malformed or unsupported stream data
	CategoryCodec
	// CategoryResource indicates file system or memory failures (missing file, permission, I/O)
	CategoryResource
	// CategoryNetwork indicates connection failures for remote sources
	CategoryNetwork
	// CategoryAuth indicates authentication/authorization failures for remote sources
	CategoryAuth
)

// String returns a human-readable name for the category
func (c Category) String() string {
	switch c {
	case CategoryCodec:
		return "codec"
	case CategoryResource:
		return "resource"
	case CategoryNetwork:
		return "network"
	case CategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error is a classified native failure.
type Error struct {
	Category Category
	Op       string // "init" or "decode"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("native %s [%s]: %v", e.Op, e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf returns the category of the first *Error in err's chain,
// or CategoryUnknown.
func CategoryOf(err error) Category {
	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr.Category
	}
	return CategoryUnknown
}
