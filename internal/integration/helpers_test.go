package integration

import (
	"context"
	"image"
	"image/color"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/drowsiness-alarm/internal/config"
	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/vision"
)

// frameSize is the side of the synthetic camera frames.
const frameSize = 40

// reservePort finds a free TCP address for a test server.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// driverSource simulates a driver who closes their eyes for closedRun frames, then blinks open once.
type driverSource struct {
	mu        sync.Mutex
	closedRun int
	frame     int
}

func (s *driverSource) Read(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Millisecond):
	}

	s.mu.Lock()
	closed := s.frame%(s.closedRun+1) < s.closedRun
	s.frame++
	s.mu.Unlock()

	fill := color.RGBA{G: 255, A: 255}
	if closed {
		fill = color.RGBA{R: 255, A: 255}
	}

	img := image.NewRGBA(image.Rect(0, 0, frameSize, frameSize))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = fill.R, fill.G, fill.B, fill.A
	}

	return img, nil
}

func (*driverSource) Close() error {
	return nil
}

// wholeFace reports the whole frame as a face with an eye in each half.
type wholeFace struct{}

func (wholeFace) Faces(frame image.Image) ([]image.Rectangle, error) {
	return []image.Rectangle{frame.Bounds()}, nil
}

func (wholeFace) Eyes(_ image.Image, face image.Rectangle) ([]image.Rectangle, []image.Rectangle, error) {
	mid := face.Min.X + face.Dx()/2

	left := image.Rect(face.Min.X, face.Min.Y, mid, face.Max.Y)
	right := image.Rect(mid, face.Min.Y, face.Max.X, face.Max.Y)

	return []image.Rectangle{left}, []image.Rectangle{right}, nil
}

// redMeansClosed labels an eye closed when its red channel dominates.
func redMeansClosed(eye *vision.EyeImage) (domain.Label, error) {
	_, g, r := eye.At(0, 0)
	if r > g {
		return domain.LabelClosed, nil
	}

	return domain.LabelOpen, nil
}

// constantJPEG returns the same payload for every frame.
type constantJPEG struct{}

func (constantJPEG) Render(image.Image, *vision.Annotation) ([]byte, error) {
	return []byte{0xFF, 0xD8, 0xFF, 0xD9}, nil
}

// syntheticBackend wires the fakes above into a backend.
func syntheticBackend(closedRun int) func(*config.Config) (*vision.Backend, error) {
	return func(*config.Config) (*vision.Backend, error) {
		return &vision.Backend{
			Opener: func(context.Context) (vision.Source, error) {
				return &driverSource{closedRun: closedRun}, nil
			},
			Detector:   wholeFace{},
			Classifier: vision.ClassifierFunc(redMeansClosed),
			Renderer:   constantJPEG{},
		}, nil
	}
}

// relayRecorder is an email relay that records every accepted form.
type relayRecorder struct {
	mu    sync.Mutex
	forms []map[string]string
}

func (r *relayRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	form := make(map[string]string)
	if err := json.NewDecoder(req.Body).Decode(&form); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	r.forms = append(r.forms, form)
	r.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (r *relayRecorder) received() []map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]map[string]string(nil), r.forms...)
}

// startRelay starts a recording relay server.
func startRelay(t *testing.T) (*relayRecorder, string) {
	t.Helper()

	recorder := new(relayRecorder)
	srv := httptest.NewServer(recorder)
	t.Cleanup(srv.Close)

	return recorder, srv.URL + "/f/test"
}

// writeSettings saves a settings file for the monitor.
func writeSettings(t *testing.T, cfg *config.Config) string {
	t.Helper()

	cfg.FaceCascade = "face.xml"
	cfg.LeftEyeCascade = "left.xml"
	cfg.RightEyeCascade = "right.xml"
	cfg.EyeModel = "eyes.onnx"
	cfg.StaticDir = t.TempDir()

	path := filepath.Join(t.TempDir(), "drowsiness-settings.yaml")
	require.NoError(t, config.Save(path, cfg))

	return path
}
