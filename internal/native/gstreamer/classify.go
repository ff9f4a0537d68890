package gstreamer

import (
	"strings"

	"github.com/HenryThomas9587/media-demo/internal/native"
)

// classifyError categorizes a GStreamer bus error from its message and debug
// string.
//
// go-gst's GError does not expose the error domain, so classification relies
// on keyword matching. Order matters: auth before network (a 401 is also a
// connection failure), resource before network ("not found" for a local file
// is a missing resource).
func classifyError(message, debug string) native.Category {
	combined := strings.ToLower(message + " " + debug)

	switch {
	case containsAny(combined, authKeywords):
		return native.CategoryAuth
	case containsAny(combined, resourceKeywords):
		return native.CategoryResource
	case containsAny(combined, codecKeywords):
		return native.CategoryCodec
	case containsAny(combined, networkKeywords):
		return native.CategoryNetwork
	default:
		return native.CategoryUnknown
	}
}

var authKeywords = []string{
	"unauthorized",
	"401",
	"403",
	"forbidden",
	"authentication",
	"credentials",
}

var resourceKeywords = []string{
	"no such file",
	"could not open file",
	"resource not found",
	"permission denied",
	"no space left",
	"could not read",
}

var codecKeywords = []string{
	"codec",
	"decode",
	"format",
	"negotiation",
	"not negotiated",
	"not-negotiated",
	"caps",
	"no decoder",
	"missing plugin",
	"typefind",
	"demux",
	"stream contains no data",
}

var networkKeywords = []string{
	"connection",
	"timeout",
	"unreachable",
	"network",
	"dns",
	"resolve",
	"socket",
	"could not connect",
	"failed to connect",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
