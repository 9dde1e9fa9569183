// Package stream describes the fixed set of network video sources captured
// by the daemon. Streams are built once at startup and never change.
package stream

import "fmt"

// Stream identifies one capture source. Index is 1-based and used only for
// naming and logging.
type Stream struct {
	Index int
	URL   string
}

// Label returns the stream's short name, e.g. "stream01".
func (s Stream) Label() string {
	return fmt.Sprintf("stream%02d", s.Index)
}

func (s Stream) String() string {
	return s.Label()
}

// FromURLs assigns 1-based indices to urls in order.
func FromURLs(urls []string) []Stream {
	streams := make([]Stream, 0, len(urls))
	for i, url := range urls {
		streams = append(streams, Stream{Index: i + 1, URL: url})
	}
	return streams
}

// ByIndex finds the stream with the given index.
func ByIndex(streams []Stream, index int) (Stream, bool) {
	for _, s := range streams {
		if s.Index == index {
			return s, true
		}
	}
	return Stream{}, false
}
