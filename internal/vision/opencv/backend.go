package opencv

import (
	"errors"
	"fmt"

	"github.com/oshokin/drowsiness-alarm/internal/config"
	"github.com/oshokin/drowsiness-alarm/internal/vision"
)

// LoadBackend loads the cascades and the eye model named in cfg.
// Any failure is fatal for the process: nothing can be detected without them.
func LoadBackend(cfg *config.Config) (*vision.Backend, error) {
	detector, err := NewCascadeDetector(cfg.FaceCascade, cfg.LeftEyeCascade, cfg.RightEyeCascade)
	if err != nil {
		return nil, fmt.Errorf("load cascades: %w", err)
	}

	classifier, err := NewNetClassifier(cfg.EyeModel, cfg.EyeModelConfig, cfg.EyeInputSize)
	if err != nil {
		_ = detector.Close()

		return nil, fmt.Errorf("load eye model: %w", err)
	}

	return &vision.Backend{
		Opener:     CameraOpener(cfg.CameraDevice),
		Detector:   detector,
		Classifier: classifier,
		Renderer:   NewRenderer(),
		Release: func() error {
			return errors.Join(detector.Close(), classifier.Close())
		},
	}, nil
}
