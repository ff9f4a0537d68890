package gstreamer

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
)

// requiredElements are created by every pipeline this backend builds.
var requiredElements = []string{"filesrc", "decodebin", "uridecodebin", "videoconvert", "capsfilter", "appsink"}

// CheckAvailable verifies that GStreamer initializes and provides every
// element the decode pipeline needs.
//
// This is a fail-fast validation meant for startup.
func CheckAvailable() error {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	for _, name := range requiredElements {
		elem, err := gst.NewElement(name)
		if err != nil {
			return fmt.Errorf("gstreamer: element %q not available (is the plugin set installed?): %w", name, err)
		}
		elem.SetState(gst.StateNull)
	}

	return nil
}
