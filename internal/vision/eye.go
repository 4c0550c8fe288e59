package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// channels is the number of color channels fed to the classifier.
const channels = 3

// EyeImage is a square eye crop ready for classification.
// Pix holds Size*Size pixels row by row, each as blue, green and red in [0, 1].
type EyeImage struct {
	// Size is the side of the square in pixels.
	Size int
	// Pix holds the scaled channel values.
	Pix []float32
}

// At returns the blue, green and red values of the pixel at (x, y).
func (e *EyeImage) At(x, y int) (b, g, r float32) {
	offset := (y*e.Size + x) * channels

	return e.Pix[offset], e.Pix[offset+1], e.Pix[offset+2]
}

// Normalize crops rect from frame, resizes it to size x size and scales it to [0, 1].
// It reports false when the crop has no area, which means the eye was not observed.
func Normalize(frame image.Image, rect image.Rectangle, size int) (*EyeImage, bool) {
	if frame == nil || size <= 0 {
		return nil, false
	}

	rect = rect.Intersect(frame.Bounds())
	if rect.Empty() {
		return nil, false
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), frame, rect, draw.Src, nil)

	eye := &EyeImage{
		Size: size,
		Pix:  make([]float32, size*size*channels),
	}

	for y := range size {
		row := dst.Pix[y*dst.Stride:]

		for x := range size {
			src := row[x*4:]
			offset := (y*size + x) * channels

			eye.Pix[offset] = float32(src[2]) / 255
			eye.Pix[offset+1] = float32(src[1]) / 255
			eye.Pix[offset+2] = float32(src[0]) / 255
		}
	}

	return eye, true
}
