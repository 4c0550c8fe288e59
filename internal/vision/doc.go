// Package vision defines the image-facing collaborators of the detection loop.
//
// Frames travel as image.Image so the loop and its tests stay independent of
// any computer-vision backend. The opencv subpackage provides the production
// camera, cascade detector, network classifier and JPEG renderer.
package vision
