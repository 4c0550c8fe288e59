// Package stream fans annotated frames out to MJPEG viewers.
//
// Frames are pushed by the detection loop and never block it: viewers that
// are too slow simply miss frames. The most recent frame is kept for
// single-image snapshots.
package stream

import (
	"net/http"
	"sync"

	"github.com/hybridgroup/mjpeg"
)

// Broadcaster publishes JPEG frames to any number of HTTP viewers.
type Broadcaster struct {
	// stream serves multipart/x-mixed-replace responses.
	stream *mjpeg.Stream

	// mu guards last.
	mu sync.RWMutex
	// last is the most recent frame.
	last []byte
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		stream: mjpeg.NewStream(),
	}
}

// Publish pushes an encoded JPEG to every connected viewer.
func (b *Broadcaster) Publish(frame []byte) {
	if len(frame) == 0 {
		return
	}

	cloned := make([]byte, len(frame))
	copy(cloned, frame)

	b.mu.Lock()
	b.last = cloned
	b.mu.Unlock()

	b.stream.UpdateJPEG(cloned)
}

// LastFrame returns the most recent frame, if any.
func (b *Broadcaster) LastFrame() ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.last) == 0 {
		return nil, false
	}

	return b.last, true
}

// Reset forgets the last frame so a new session does not show a stale image.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = nil
}

// ServeHTTP streams frames until the viewer disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.stream.ServeHTTP(w, r)
}
