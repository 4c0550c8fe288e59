package monitor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"time"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/logger"
	"github.com/oshokin/drowsiness-alarm/internal/metrics"
	"github.com/oshokin/drowsiness-alarm/internal/repository/stats"
	"github.com/oshokin/drowsiness-alarm/internal/vision"
)

// Pipeline stages reported in frame error metrics.
const (
	stageCapture        = "capture"
	stageFaceDetection  = "face_detection"
	stageEyeDetection   = "eye_detection"
	stageClassification = "classification"
	stageRender         = "render"
)

// Overlay text.
const (
	textEyesOpen   = "Eyes Open"
	textEyesClosed = "Eyes Closed: "
	textAlert      = "DROWSINESS ALERT!"
)

// errInference wraps detector and classifier failures.
var errInference = errors.New("inference failed")

// pipeline turns frames into closed/open decisions for one session.
// It is owned by the frame loop and is not safe for concurrent use.
type pipeline struct {
	// detector finds the face and eye boxes.
	detector vision.Detector
	// classifier labels each eye.
	classifier vision.Classifier
	// renderer draws the overlay and encodes the frame.
	renderer vision.Renderer
	// stats receives the per-frame counters.
	stats stats.Repository
	// machine tracks the closed-eye streak.
	machine *Machine
	// eyeSize is the side of the classifier input.
	eyeSize int
	// abortOnError ends the session on detector or classifier failures.
	abortOnError bool
	// onRaise runs on every rising edge with the new event count.
	onRaise func(ctx context.Context, events uint64)
	// onClear runs when an open frame ends an active alarm.
	onClear func(ctx context.Context)

	// left is the residual label of the left eye.
	left domain.Label
	// right is the residual label of the right eye.
	right domain.Label
}

// frameResult is the outcome of one processed frame.
type frameResult struct {
	// jpeg is the encoded frame, nil when rendering failed.
	jpeg []byte
	// closed reports whether both effective labels were closed.
	closed bool
	// transition is the alarm change caused by the frame.
	transition Transition
}

// process runs detection, classification and the state machine on one frame.
// An error is returned only when the session must end.
func (p *pipeline) process(ctx context.Context, frame image.Image) (*frameResult, error) {
	started := time.Now()
	frames := p.stats.IncFramesProcessed()

	annotation, closed, observed, err := p.classify(frame)
	if err != nil {
		if p.abortOnError {
			return nil, err
		}

		logger.WarnKV(ctx, "Frame skipped", "frame", frames, "error", err)

		annotation, observed = nil, false
	}

	result := new(frameResult)

	if observed {
		if closed {
			p.stats.IncEyesClosedFrames()
		}

		result.closed = closed
		result.transition = p.applyTransition(ctx, p.machine.Observe(closed))

		p.annotate(annotation, frame.Bounds(), closed)
	}

	metrics.RecordFrame(result.closed, time.Since(started))

	jpeg, err := p.renderer.Render(frame, annotation)
	if err != nil {
		metrics.RecordFrameError(stageRender)
		logger.WarnKV(ctx, "Render frame failed", "frame", frames, "error", err)

		return result, nil
	}

	result.jpeg = jpeg

	return result, nil
}

// classify finds the first face and eyes and updates the residual labels.
// observed is false when no face was found.
func (p *pipeline) classify(frame image.Image) (*vision.Annotation, bool, bool, error) {
	faces, err := p.detector.Faces(frame)
	if err != nil {
		metrics.RecordFrameError(stageFaceDetection)

		return nil, false, false, fmt.Errorf("detect faces: %w: %w", errInference, err)
	}

	if len(faces) == 0 {
		return nil, false, false, nil
	}

	annotation := new(vision.Annotation)

	face := faces[0]
	annotation.AddBox(face, vision.ColorFace)

	lefts, rights, err := p.detector.Eyes(frame, face)
	if err != nil {
		metrics.RecordFrameError(stageEyeDetection)

		return nil, false, false, fmt.Errorf("detect eyes: %w: %w", errInference, err)
	}

	left, err := p.classifyEye(frame, lefts, p.left, annotation)
	if err != nil {
		return nil, false, false, fmt.Errorf("classify left eye: %w", err)
	}

	right, err := p.classifyEye(frame, rights, p.right, annotation)
	if err != nil {
		return nil, false, false, fmt.Errorf("classify right eye: %w", err)
	}

	p.left, p.right = left, right

	return annotation, left.Closed() && right.Closed(), true, nil
}

// classifyEye labels the first box, falling back to residual when the eye is not observed.
func (p *pipeline) classifyEye(
	frame image.Image,
	boxes []image.Rectangle,
	residual domain.Label,
	annotation *vision.Annotation,
) (domain.Label, error) {
	if len(boxes) == 0 {
		return residual, nil
	}

	box := boxes[0]
	annotation.AddBox(box, vision.ColorEye)

	eye, ok := vision.Normalize(frame, box, p.eyeSize)
	if !ok {
		return residual, nil
	}

	label, err := p.classifier.Classify(eye)
	if err != nil {
		metrics.RecordFrameError(stageClassification)

		return residual, fmt.Errorf("%w: %w", errInference, err)
	}

	return label, nil
}

// applyTransition mirrors the machine transition into the stats and fires the hooks.
func (p *pipeline) applyTransition(ctx context.Context, transition Transition) Transition {
	switch transition {
	case TransitionRaised:
		events, raised := p.stats.RaiseAlarm()
		if !raised {
			return TransitionNone
		}

		if p.onRaise != nil {
			p.onRaise(ctx, events)
		}
	case TransitionCleared:
		if !p.stats.ClearAlarm() {
			return TransitionNone
		}

		if p.onClear != nil {
			p.onClear(ctx)
		}
	case TransitionNone:
	}

	return transition
}

// annotate adds the status text for the frame.
func (p *pipeline) annotate(annotation *vision.Annotation, bounds image.Rectangle, closed bool) {
	origin := bounds.Min.Add(image.Pt(10, 30))

	if !closed {
		annotation.AddText(textEyesOpen, origin, vision.ColorOpen, 2)

		return
	}

	annotation.AddText(textEyesClosed+strconv.Itoa(p.machine.Count()), origin, vision.ColorClosed, 2)

	if p.machine.Count() >= p.machine.Threshold() {
		annotation.AddText(textAlert, image.Pt(bounds.Min.X+100, bounds.Max.Y-20), vision.ColorClosed, 3)
	}
}
