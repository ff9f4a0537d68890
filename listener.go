package videoplayer

// Listener receives decoder events.
//
// Guarantees:
//   - OnVideoMetadataReady is called exactly once, from Init, before any
//     OnFrameDecoded
//   - OnFrameDecoded and OnError are called from the decode goroutine, never
//     concurrently with each other
//   - OnFrameDecoded transfers ownership of frame; the listener must hand it
//     on or call frame.Release
//
// OnVideoMetadataReady runs while Init holds the engine lock and must not
// call back into the engine. The other callbacks may call Stop or Release.
type Listener interface {
	OnVideoMetadataReady(width, height int, frameRate float64)
	OnFrameDecoded(frame *VideoFrame, width, height int)
	OnError(err error)
}

// EndOfStreamListener is implemented by listeners that want to know when the
// source is exhausted. The engine is already in StateStopped when it is
// called.
type EndOfStreamListener interface {
	OnEndOfStream()
}

// ListenerFuncs adapts plain functions to Listener and EndOfStreamListener.
// Nil fields are skipped; a nil Frame releases every frame.
type ListenerFuncs struct {
	Metadata    func(width, height int, frameRate float64)
	Frame       func(frame *VideoFrame, width, height int)
	Error       func(err error)
	EndOfStream func()
}

// OnVideoMetadataReady implements Listener.
func (l ListenerFuncs) OnVideoMetadataReady(width, height int, frameRate float64) {
	if l.Metadata != nil {
		l.Metadata(width, height, frameRate)
	}
}

// OnFrameDecoded implements Listener.
func (l ListenerFuncs) OnFrameDecoded(frame *VideoFrame, width, height int) {
	if l.Frame == nil {
		frame.Release()
		return
	}
	l.Frame(frame, width, height)
}

// OnError implements Listener.
func (l ListenerFuncs) OnError(err error) {
	if l.Error != nil {
		l.Error(err)
	}
}

// OnEndOfStream implements EndOfStreamListener.
func (l ListenerFuncs) OnEndOfStream() {
	if l.EndOfStream != nil {
		l.EndOfStream()
	}
}
