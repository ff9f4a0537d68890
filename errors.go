package videoplayer

import (
	"errors"
	"fmt"

	"github.com/HenryThomas9587/media-demo/internal/native"
)

// ErrReleased is returned by Init and Start after Release.
var ErrReleased = errors.New("videoplayer: released")

var errNilRenderer = errors.New("videoplayer: renderer is required")

// ErrorCategory classifies a decode failure for logs and listeners.
type ErrorCategory = native.Category

// Error categories.
const (
	CategoryUnknown  = native.CategoryUnknown
	CategoryCodec    = native.CategoryCodec
	CategoryResource = native.CategoryResource
	CategoryNetwork  = native.CategoryNetwork
	CategoryAuth     = native.CategoryAuth
)

// InitializationError means the source could not be opened or contains no
// decodable video stream. It is fatal to the session.
type InitializationError struct {
	// Path is the source that failed to open
	Path string
	// Backend is the native backend that was tried (empty if none matched)
	Backend string
	// Category classifies the failure
	Category ErrorCategory
	// Err is the underlying cause
	Err error
}

func (e *InitializationError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("videoplayer: cannot initialize %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("videoplayer: cannot initialize %q with %s backend [%s]: %v",
		e.Path, e.Backend, e.Category, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// RuntimeDecodeError is a non-fatal failure reported through
// Listener.OnError. Decoding state is not changed.
type RuntimeDecodeError struct {
	// Category classifies the failure
	Category ErrorCategory
	// FramesDecoded is the number of frames delivered before the failure
	FramesDecoded uint64
	// Err is the underlying cause
	Err error
}

func (e *RuntimeDecodeError) Error() string {
	return fmt.Sprintf("videoplayer: decode error [%s] after %d frames: %v",
		e.Category, e.FramesDecoded, e.Err)
}

func (e *RuntimeDecodeError) Unwrap() error {
	return e.Err
}
