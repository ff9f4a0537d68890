package videoplayer

import (
	"github.com/HenryThomas9587/media-demo/internal/cadence"
	"github.com/HenryThomas9587/media-demo/internal/frame"
)

// VideoFrame is one decoded I420 picture. See the package documentation for
// the ownership contract.
type VideoFrame = frame.VideoFrame

// PixelFormat identifies the memory layout of a VideoFrame.
type PixelFormat = frame.PixelFormat

// FormatI420 is the only pixel format produced by the decoder.
const FormatI420 = frame.FormatI420

// CadenceStats describes how regularly frames are arriving.
type CadenceStats = cadence.Stats

// Metadata describes the video stream, delivered once after Init.
type Metadata struct {
	// Width of the decoded pictures in pixels
	Width int
	// Height of the decoded pictures in pixels
	Height int
	// FrameRate in frames per second (0 if unknown)
	FrameRate float64
	// Backend is the native backend that opened the source
	Backend string
	// SessionID identifies the playback session in logs
	SessionID string
}

// DecoderState is the lifecycle state of a DecoderEngine.
//
//	Uninitialized → Initialized → Decoding ⇄ Stopped → Released
type DecoderState int32

const (
	// StateUninitialized is the state before a successful Init
	StateUninitialized DecoderState = iota
	// StateInitialized means the source is open and probed
	StateInitialized
	// StateDecoding means the decode goroutine is producing frames
	StateDecoding
	// StateStopped means decoding was stopped or the stream ended
	StateStopped
	// StateReleased is terminal
	StateReleased
)

// String returns a human-readable name for the state
func (s DecoderState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateDecoding:
		return "decoding"
	case StateStopped:
		return "stopped"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// DecoderStats contains decoder statistics
type DecoderStats struct {
	// State is the current lifecycle state
	State DecoderState
	// Backend is the native backend in use (empty before Init)
	Backend string
	// Resolution is the current frame resolution (e.g., "1280x720")
	Resolution string
	// FPSTarget is the frame rate reported by the source
	FPSTarget float64
	// FPSReal is frames decoded divided by time spent decoding
	FPSReal float64
	// LatencyMS is the time since the last decoded frame in milliseconds
	LatencyMS int64
	// FramesDecoded is the total number of frames delivered to the listener
	FramesDecoded uint64
	// BytesCopied is the total number of bytes copied out of native buffers
	BytesCopied uint64
	// BufferAllocs is the number of copy buffers allocated (first use or growth)
	BufferAllocs uint64
	// BufferReuses is the number of copies served from recycled buffers
	BufferReuses uint64
	// EndOfStream is true once the source is exhausted
	EndOfStream bool

	// ErrorsCodec counts malformed or unsupported stream data
	ErrorsCodec uint64
	// ErrorsResource counts file system and memory failures
	ErrorsResource uint64
	// ErrorsNetwork counts connection failures for remote sources
	ErrorsNetwork uint64
	// ErrorsAuth counts authentication failures for remote sources
	ErrorsAuth uint64
	// ErrorsUnknown counts unclassified failures
	ErrorsUnknown uint64

	// Cadence covers the most recent frames (see DecoderConfig.CadenceWindow)
	Cadence CadenceStats
}
