package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/oshokin/drowsiness-alarm/internal/vision"
)

// errReadFailed is returned when the device stops delivering frames.
var errReadFailed = errors.New("camera read failed")

// Camera reads frames from a local capture device.
type Camera struct {
	// capture is the opened device.
	capture *gocv.VideoCapture
	// frame is reused between reads.
	frame gocv.Mat
	// device is the index the camera was opened with.
	device int

	// closeOnce releases the device exactly once.
	closeOnce sync.Once
}

// OpenCamera opens the capture device with the given index.
func OpenCamera(device int) (*Camera, error) {
	capture, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, err)
	}

	if !capture.IsOpened() {
		_ = capture.Close()

		return nil, fmt.Errorf("open camera %d: device is not available", device)
	}

	return &Camera{
		capture: capture,
		frame:   gocv.NewMat(),
		device:  device,
	}, nil
}

// CameraOpener returns an Opener for the given device.
func CameraOpener(device int) vision.Opener {
	return func(context.Context) (vision.Source, error) {
		return OpenCamera(device)
	}
}

// Read grabs the next frame.
func (c *Camera) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok := c.capture.Read(&c.frame); !ok {
		return nil, fmt.Errorf("camera %d: %w", c.device, errReadFailed)
	}

	if c.frame.Empty() {
		return nil, vision.ErrEmptyFrame
	}

	img, err := c.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}

	return img, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	var err error

	c.closeOnce.Do(func() {
		err = c.capture.Close()
		_ = c.frame.Close()
	})

	return err
}
