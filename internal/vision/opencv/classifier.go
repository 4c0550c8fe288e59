package opencv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/vision"
)

var (
	// errEmptyNetwork is returned when the model file could not be parsed.
	errEmptyNetwork = errors.New("eye model is empty")
	// errNoScores is returned when a forward pass produced nothing.
	errNoScores = errors.New("network returned no scores")
)

// NetClassifier runs the eye-state network through the OpenCV dnn module.
type NetClassifier struct {
	// mu serializes inference.
	mu sync.Mutex
	// net is the loaded network.
	net gocv.Net
	// size is the side of the square network input.
	size int
}

// NewNetClassifier loads the network from model and the optional config file.
func NewNetClassifier(model, config string, size int) (*NetClassifier, error) {
	if size <= 0 {
		size = domain.DefaultEyeInputSize
	}

	net := gocv.ReadNet(model, config)
	if net.Empty() {
		_ = net.Close()

		return nil, fmt.Errorf("load %s: %w", model, errEmptyNetwork)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &NetClassifier{
		net:  net,
		size: size,
	}, nil
}

// Classify returns the label with the highest score.
func (c *NetClassifier) Classify(eye *vision.EyeImage) (domain.Label, error) {
	if eye == nil || eye.Size != c.size {
		return domain.LabelUnknown, fmt.Errorf("classify eye: input must be %dx%d", c.size, c.size)
	}

	input, err := gocv.NewMatFromBytes(eye.Size, eye.Size, gocv.MatTypeCV32FC3, float32Bytes(eye.Pix))
	if err != nil {
		return domain.LabelUnknown, fmt.Errorf("build input: %w", err)
	}
	defer input.Close()

	blob := gocv.BlobFromImage(input, 1.0, image.Pt(c.size, c.size), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.net.SetInput(blob, "")

	scores := c.net.Forward("")
	defer scores.Close()

	if scores.Empty() {
		return domain.LabelUnknown, fmt.Errorf("classify eye: %w", errNoScores)
	}

	_, _, _, best := gocv.MinMaxLoc(scores)

	label, err := domain.LabelFromIndex(best.X)
	if err != nil {
		return domain.LabelUnknown, fmt.Errorf("classify eye: %w", err)
	}

	return label, nil
}

// Close releases the network.
func (c *NetClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.net.Close()
}

// float32Bytes lays out values as native little-endian float32 bytes.
func float32Bytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}

	return out
}
