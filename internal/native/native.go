// Package native defines the boundary to the opaque decoding engines that turn
// a video file into raw I420 pictures.
//
// A native Decoder does not own goroutines on behalf of its caller: the
// caller's decode loop calls DecodeNext once per work unit and checks its own
// stop flag in between. The byte slice handed to the DecodeNext callback is
// only valid until the callback returns.
package native

import (
	"errors"
	"time"
)

// ErrNoFrame is returned by DecodeNext when no picture became ready within
// the timeout. It is not a failure; the caller simply tries again.
var ErrNoFrame = errors.New("native: no frame ready")

// ErrNotInitialized is returned when an operation needs a successful Init.
var ErrNotInitialized = errors.New("native: decoder not initialized")

// ErrReleased is returned by every operation after Release.
var ErrReleased = errors.New("native: decoder released")

// Probe is what Init learns about the first video stream.
type Probe struct {
	// Width of the decoded pictures in pixels
	Width int
	// Height of the decoded pictures in pixels
	Height int
	// FrameRate in frames per second (0 if the container does not say)
	FrameRate float64
	// SelfPaced is true if the engine already delivers frames at presentation
	// rate (e.g. a clock-synchronized sink), so the caller must not throttle.
	SelfPaced bool
}

// FrameFunc receives one decoded I420 picture of width×height. buf holds at
// least frame.BufferSize(width, height) bytes and is only valid during the
// call. Dimensions normally match the Probe but may change mid-stream.
type FrameFunc func(buf []byte, width, height int)

// Decoder is an opaque native decoding engine.
//
// Implementations must guarantee:
//   - StartDecoding and StopDecoding never wait for a DecodeNext in progress
//   - Release is idempotent
//   - every method returns ErrReleased (or does nothing) after Release
//
// Callers must guarantee:
//   - Init is called at most once
//   - DecodeNext is only called from one goroutine at a time
//   - Release is not called concurrently with DecodeNext
type Decoder interface {
	// Init opens the source and probes the first video stream.
	Init(path string) (Probe, error)

	// StartDecoding resumes production of pictures. Fire-and-forget.
	StartDecoding()

	// StopDecoding pauses production of pictures. Fire-and-forget.
	StopDecoding()

	// DecodeNext decodes one unit and invokes fn for each picture it yields.
	//
	// Returns:
	//   - nil after at least one picture was delivered
	//   - ErrNoFrame if nothing was ready within timeout
	//   - io.EOF at end of stream
	//   - any other error for a runtime decode failure
	DecodeNext(timeout time.Duration, fn FrameFunc) error

	// Release tears down the native context. Fire-and-forget, idempotent.
	Release()
}

// Factory creates a fresh Decoder for one playback session.
type Factory func() Decoder
