package server

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/drowsiness-alarm/internal/config"
	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/events"
	"github.com/oshokin/drowsiness-alarm/internal/vision"
)

// jpegStub is what the fake renderer emits for every frame.
var jpegStub = []byte{0xFF, 0xD8, 0xFF, 0xD9}

// tickingSource yields a small frame every few milliseconds.
type tickingSource struct {
	closed atomic.Bool
}

func (s *tickingSource) Read(ctx context.Context) (image.Image, error) {
	if s.closed.Load() {
		return nil, errors.New("source closed")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(2 * time.Millisecond):
	}

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.SetRGBA(0, 0, color.RGBA{A: 255})

	return img, nil
}

func (s *tickingSource) Close() error {
	s.closed.Store(true)
	return nil
}

// noFaces never finds a face.
type noFaces struct{}

func (noFaces) Faces(image.Image) ([]image.Rectangle, error) {
	return nil, nil
}

func (noFaces) Eyes(image.Image, image.Rectangle) ([]image.Rectangle, []image.Rectangle, error) {
	return nil, nil, nil
}

// stubRenderer returns a fixed JPEG.
type stubRenderer struct{}

func (stubRenderer) Render(image.Image, *vision.Annotation) ([]byte, error) {
	return jpegStub, nil
}

// stallingRenderer holds the first frame until released.
type stallingRenderer struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStallingRenderer() *stallingRenderer {
	return &stallingRenderer{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (r *stallingRenderer) Render(image.Image, *vision.Annotation) ([]byte, error) {
	r.once.Do(func() {
		close(r.entered)
		<-r.release
	})

	return jpegStub, nil
}

// fakeBackend builds a backend and counts releases.
type fakeBackend struct {
	released atomic.Int32
	opened   atomic.Int32
	// renderer replaces the stub renderer when set.
	renderer vision.Renderer
}

func (f *fakeBackend) load(*config.Config) (*vision.Backend, error) {
	var renderer vision.Renderer = stubRenderer{}
	if f.renderer != nil {
		renderer = f.renderer
	}

	return &vision.Backend{
		Opener: func(context.Context) (vision.Source, error) {
			f.opened.Add(1)
			return new(tickingSource), nil
		},
		Detector: noFaces{},
		Classifier: vision.ClassifierFunc(func(*vision.EyeImage) (domain.Label, error) {
			return domain.LabelOpen, nil
		}),
		Renderer: renderer,
		Release: func() error {
			f.released.Add(1)
			return nil
		},
	}, nil
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, event *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
}

func (p *recordingPublisher) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// testConfig returns validated settings pointing at placeholder model paths.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		ListenAddress:   "127.0.0.1:0",
		FaceCascade:     "face.xml",
		LeftEyeCascade:  "left.xml",
		RightEyeCascade: "right.xml",
		EyeModel:        "eyes.onnx",
		RelayURL:        "http://127.0.0.1:1/relay",
		StaticDir:       t.TempDir(),
	}
	require.NoError(t, config.Validate(cfg))

	return cfg
}

// writeConfig saves cfg to a temporary settings file.
func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, cfg))

	return path
}
