package vision

import (
	"context"
	"errors"
	"image"
	"image/color"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
)

// ErrEmptyFrame is returned by a Source that delivered a frame without pixels.
var ErrEmptyFrame = errors.New("empty frame")

// Source delivers frames from a capture device.
type Source interface {
	// Read blocks until the next frame is available.
	Read(ctx context.Context) (image.Image, error)
	// Close releases the device.
	Close() error
}

// Opener opens a new Source for a detection session.
type Opener func(ctx context.Context) (Source, error)

// Detector finds faces and eyes in a frame.
type Detector interface {
	// Faces returns face boxes in frame coordinates.
	Faces(frame image.Image) ([]image.Rectangle, error)
	// Eyes returns left and right eye boxes inside face, in frame coordinates.
	Eyes(frame image.Image, face image.Rectangle) (left, right []image.Rectangle, err error)
}

// Classifier maps a normalized eye image to a label.
type Classifier interface {
	Classify(eye *EyeImage) (domain.Label, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(eye *EyeImage) (domain.Label, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(eye *EyeImage) (domain.Label, error) {
	return f(eye)
}

// Renderer draws an annotation on a frame and encodes it as JPEG.
type Renderer interface {
	Render(frame image.Image, annotation *Annotation) ([]byte, error)
}

// Overlay colors.
var (
	ColorFace   = color.RGBA{B: 255, A: 255}
	ColorEye    = color.RGBA{G: 255, A: 255}
	ColorOpen   = color.RGBA{G: 255, A: 255}
	ColorClosed = color.RGBA{R: 255, A: 255}
)

// Box is a rectangle drawn on the frame.
type Box struct {
	// Rect is the box in frame coordinates.
	Rect image.Rectangle
	// Color is the stroke color.
	Color color.RGBA
	// Thickness is the stroke width in pixels.
	Thickness int
}

// Text is a line of text drawn on the frame.
type Text struct {
	// Content is the text itself.
	Content string
	// Origin is the bottom-left corner of the text.
	Origin image.Point
	// Color is the text color.
	Color color.RGBA
	// Thickness is the stroke width in pixels.
	Thickness int
}

// Annotation is everything drawn over a frame.
type Annotation struct {
	// Boxes are drawn first.
	Boxes []Box
	// Texts are drawn over the boxes.
	Texts []Text
}

// AddBox appends a box.
func (a *Annotation) AddBox(rect image.Rectangle, c color.RGBA) {
	a.Boxes = append(a.Boxes, Box{Rect: rect, Color: c, Thickness: 2})
}

// AddText appends a text line.
func (a *Annotation) AddText(content string, origin image.Point, c color.RGBA, thickness int) {
	a.Texts = append(a.Texts, Text{Content: content, Origin: origin, Color: c, Thickness: thickness})
}

// Empty reports whether nothing would be drawn.
func (a *Annotation) Empty() bool {
	return a == nil || (len(a.Boxes) == 0 && len(a.Texts) == 0)
}

// Backend bundles the collaborators of one vision implementation.
type Backend struct {
	// Opener opens the capture device.
	Opener Opener
	// Detector finds faces and eyes.
	Detector Detector
	// Classifier labels eyes.
	Classifier Classifier
	// Renderer draws and encodes frames.
	Renderer Renderer
	// Release frees native resources; may be nil.
	Release func() error
}

// Close frees the backend resources.
func (b *Backend) Close() error {
	if b == nil || b.Release == nil {
		return nil
	}

	return b.Release()
}
