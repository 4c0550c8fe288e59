package monitor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/vision"
	"github.com/oshokin/drowsiness-alarm/internal/worker"
)

var (
	errTestDetect   = errors.New("cascade failure")
	errTestClassify = errors.New("network failure")
	errSourceClosed = errors.New("source closed")
	errSourceEmpty  = errors.New("no more frames")
)

// frameScript scripts what the fakes report for one frame.
type frameScript struct {
	closed      bool
	noFace      bool
	noEyes      bool
	zeroEyes    bool
	detectErr   bool
	classifyErr bool
}

// testFrame is an image carrying its script.
type testFrame struct {
	*image.RGBA

	script frameScript
}

// newFrame paints the frame so the classifier can read the script from the eye crop.
func newFrame(script frameScript) *testFrame {
	c := color.RGBA{G: 255, A: 255}

	switch {
	case script.classifyErr:
		c = color.RGBA{B: 255, A: 255}
	case script.closed:
		c = color.RGBA{R: 255, A: 255}
	}

	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := range 40 {
		for x := range 40 {
			img.SetRGBA(x, y, c)
		}
	}

	return &testFrame{RGBA: img, script: script}
}

func closedFrames(n int) []frameScript {
	scripts := make([]frameScript, n)
	for i := range scripts {
		scripts[i].closed = true
	}

	return scripts
}

func openFrames(n int) []frameScript {
	return make([]frameScript, n)
}

// concat joins frame scripts.
func concat(parts ...[]frameScript) []frameScript {
	var out []frameScript
	for _, p := range parts {
		out = append(out, p...)
	}

	return out
}

// fakeDetector returns the whole frame as the face and its upper halves as eyes.
type fakeDetector struct{}

func (fakeDetector) Faces(frame image.Image) ([]image.Rectangle, error) {
	f := frame.(*testFrame)

	switch {
	case f.script.detectErr:
		return nil, errTestDetect
	case f.script.noFace:
		return nil, nil
	default:
		return []image.Rectangle{f.Bounds(), image.Rect(1, 1, 2, 2)}, nil
	}
}

func (fakeDetector) Eyes(frame image.Image, face image.Rectangle) ([]image.Rectangle, []image.Rectangle, error) {
	f := frame.(*testFrame)

	switch {
	case f.script.noEyes:
		return nil, nil, nil
	case f.script.zeroEyes:
		return []image.Rectangle{image.Rect(5, 5, 5, 10)}, []image.Rectangle{image.Rect(25, 5, 30, 5)}, nil
	default:
		mid := face.Min.X + face.Dx()/2

		return []image.Rectangle{image.Rect(face.Min.X, face.Min.Y, mid, face.Min.Y+face.Dy()/2)},
			[]image.Rectangle{image.Rect(mid, face.Min.Y, face.Max.X, face.Min.Y+face.Dy()/2)},
			nil
	}
}

// colorClassifier labels red crops closed and fails on blue ones.
func colorClassifier() vision.Classifier {
	return vision.ClassifierFunc(func(eye *vision.EyeImage) (domain.Label, error) {
		b, _, r := eye.At(eye.Size/2, eye.Size/2)

		switch {
		case b > 0.5:
			return domain.LabelUnknown, errTestClassify
		case r > 0.5:
			return domain.LabelClosed, nil
		default:
			return domain.LabelOpenA, nil
		}
	})
}

// fakeRenderer records the annotations it was asked to draw.
type fakeRenderer struct {
	mu          sync.Mutex
	annotations []*vision.Annotation
	err         error
}

func (r *fakeRenderer) Render(_ image.Image, annotation *vision.Annotation) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.annotations = append(r.annotations, annotation)

	if r.err != nil {
		return nil, r.err
	}

	return []byte("jpeg"), nil
}

func (r *fakeRenderer) last() *vision.Annotation {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.annotations[len(r.annotations)-1]
}

// scriptedSource plays frames and then either fails or blocks until closed.
type scriptedSource struct {
	mu     sync.Mutex
	frames []frameScript
	block  bool
	closed chan struct{}
	once   sync.Once
	closes int
}

func newScriptedSource(block bool, frames []frameScript) *scriptedSource {
	return &scriptedSource{
		frames: frames,
		block:  block,
		closed: make(chan struct{}),
	}
}

func (s *scriptedSource) Read(ctx context.Context) (image.Image, error) {
	s.mu.Lock()

	if len(s.frames) > 0 {
		script := s.frames[0]
		s.frames = s.frames[1:]
		s.mu.Unlock()

		return newFrame(script), nil
	}

	s.mu.Unlock()

	if !s.block {
		return nil, errSourceEmpty
	}

	select {
	case <-s.closed:
		return nil, errSourceClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()

	s.once.Do(func() {
		close(s.closed)
	})

	return nil
}

func (s *scriptedSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closes
}

// fakeNotifier counts rising edges reported to the notifier.
type fakeNotifier struct {
	mu     sync.Mutex
	calls  []uint64
	resets int
}

func (n *fakeNotifier) Notify(_ context.Context, count uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls = append(n.calls, count)

	return true
}

func (n *fakeNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.resets++
}

// fakeFrames collects published frames.
type fakeFrames struct {
	mu        sync.Mutex
	published int
	resets    int
}

func (f *fakeFrames) Publish([]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.published++
}

func (f *fakeFrames) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resets++
}

// inlinePool runs tasks on the caller goroutine.
type inlinePool struct{}

func (inlinePool) Submit(ctx context.Context, _ string, task worker.Task) bool {
	task(context.WithoutCancel(ctx))

	return true
}
