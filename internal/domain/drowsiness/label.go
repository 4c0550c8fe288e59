package drowsiness

import (
	"errors"
	"fmt"
)

// Label is the discrete eye state produced by the classifier.
type Label int

const (
	// LabelUnknown marks an eye that has not been observed yet in the session.
	LabelUnknown Label = iota - 1
	// LabelOpenA is the first "open" class of the classifier output.
	LabelOpenA
	// LabelOpenB is the second "open" class of the classifier output.
	LabelOpenB
	// LabelClosed is the "closed" class of the classifier output.
	LabelClosed
)

// ErrUnknownLabel is returned when a classifier output index has no label.
var ErrUnknownLabel = errors.New("unknown eye state label")

// LabelFromIndex maps a classifier output index (argmax) to a Label.
func LabelFromIndex(index int) (Label, error) {
	switch Label(index) {
	case LabelOpenA, LabelOpenB, LabelClosed:
		return Label(index), nil
	default:
		return LabelUnknown, fmt.Errorf("index %d: %w", index, ErrUnknownLabel)
	}
}

// Closed reports whether the label is the closed class.
func (l Label) Closed() bool {
	return l == LabelClosed
}

// String implements fmt.Stringer.
func (l Label) String() string {
	switch l {
	case LabelOpenA:
		return "open-a"
	case LabelOpenB:
		return "open-b"
	case LabelClosed:
		return "closed"
	default:
		return "unknown"
	}
}
