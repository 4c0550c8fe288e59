package opencv

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// faceScaleFactor is the image pyramid step for face detection.
	faceScaleFactor = 1.3
	// faceMinNeighbors is the number of overlapping hits a face needs.
	faceMinNeighbors = 5
)

// CascadeDetector finds faces and eyes with Haar cascades.
type CascadeDetector struct {
	// mu serializes access to the classifiers.
	mu sync.Mutex
	// face detects frontal faces.
	face gocv.CascadeClassifier
	// leftEye detects left eyes inside a face.
	leftEye gocv.CascadeClassifier
	// rightEye detects right eyes inside a face.
	rightEye gocv.CascadeClassifier
}

// NewCascadeDetector loads the three cascade files.
func NewCascadeDetector(facePath, leftEyePath, rightEyePath string) (*CascadeDetector, error) {
	d := &CascadeDetector{
		face:     gocv.NewCascadeClassifier(),
		leftEye:  gocv.NewCascadeClassifier(),
		rightEye: gocv.NewCascadeClassifier(),
	}

	for _, c := range []struct {
		classifier *gocv.CascadeClassifier
		path       string
	}{
		{classifier: &d.face, path: facePath},
		{classifier: &d.leftEye, path: leftEyePath},
		{classifier: &d.rightEye, path: rightEyePath},
	} {
		if !c.classifier.Load(c.path) {
			_ = d.Close()

			return nil, fmt.Errorf("load cascade classifier from %s", c.path)
		}
	}

	return d, nil
}

// Faces returns face boxes in frame coordinates.
func (d *CascadeDetector) Faces(frame image.Image) ([]image.Rectangle, error) {
	gray, err := grayscale(frame)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.face.DetectMultiScaleWithParams(
		gray,
		faceScaleFactor,
		faceMinNeighbors,
		0,
		image.Point{},
		image.Point{},
	), nil
}

// Eyes returns eye boxes inside face, in frame coordinates.
func (d *CascadeDetector) Eyes(frame image.Image, face image.Rectangle) ([]image.Rectangle, []image.Rectangle, error) {
	gray, err := grayscale(frame)
	if err != nil {
		return nil, nil, err
	}
	defer gray.Close()

	face = face.Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
	if face.Empty() {
		return nil, nil, nil
	}

	roi := gray.Region(face)
	defer roi.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	left := offset(d.leftEye.DetectMultiScale(roi), face.Min)
	right := offset(d.rightEye.DetectMultiScale(roi), face.Min)

	return left, right, nil
}

// Close releases the classifiers.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_ = d.face.Close()
	_ = d.leftEye.Close()
	_ = d.rightEye.Close()

	return nil
}

// grayscale converts the frame to a single-channel Mat.
func grayscale(frame image.Image) (gocv.Mat, error) {
	bgr, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert frame: %w", err)
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	return gray, nil
}

// offset moves ROI-relative boxes into frame coordinates.
func offset(rects []image.Rectangle, origin image.Point) []image.Rectangle {
	for i := range rects {
		rects[i] = rects[i].Add(origin)
	}

	return rects
}
