package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/oshokin/drowsiness-alarm/internal/vision"
)

// textScale is the font scale of overlay text.
const textScale = 1.0

// Renderer draws annotations with OpenCV and encodes JPEG.
type Renderer struct{}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return new(Renderer)
}

// Render implements vision.Renderer.
func (r *Renderer) Render(frame image.Image, annotation *vision.Annotation) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	if !annotation.Empty() {
		for _, box := range annotation.Boxes {
			gocv.Rectangle(&mat, box.Rect, box.Color, box.Thickness)
		}

		for _, text := range annotation.Texts {
			gocv.PutText(&mat, text.Content, text.Origin, gocv.FontHersheySimplex, textScale, text.Color, text.Thickness)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	encoded := buf.GetBytes()
	out := make([]byte, len(encoded))
	copy(out, encoded)

	return out, nil
}
