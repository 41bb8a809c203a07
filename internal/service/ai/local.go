package ai

import (
	"context"
	"fmt"
	"os"

	"objectscanner/internal/apperror"
	"objectscanner/internal/logger"
	"objectscanner/internal/model"
)

// LocalIdentifier runs the on-device detection model.
type LocalIdentifier struct {
	loader *ModelLoader
	filter Postprocessor
	logger *logger.Logger
}

// NewLocalIdentifier creates a model-backed identifier that keeps
// detections scoring above threshold.
func NewLocalIdentifier(loader *ModelLoader, threshold float64, logger *logger.Logger) *LocalIdentifier {
	return &LocalIdentifier{
		loader: loader,
		filter: ScoreFilter(threshold),
		logger: logger,
	}
}

// Identify implements Identifier.
func (s *LocalIdentifier) Identify(ctx context.Context, imageURI string) ([]model.Detection, error) {
	path, err := statImage(imageURI)
	if err != nil {
		return nil, err
	}

	handle, err := s.loader.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperror.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", apperror.ErrDecodeFailed, path, err)
	}

	raw, err := handle.Detect(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("detect objects in %s: %w", path, err)
	}

	kept := s.filter(raw)
	if s.logger != nil {
		s.logger.Info("Detected %d object(s) in %s (%d below threshold)", len(kept), path, len(raw)-len(kept))
	}

	detections := make([]model.Detection, 0, len(kept))
	for _, d := range kept {
		detections = append(detections, d)
	}
	return detections, nil
}
