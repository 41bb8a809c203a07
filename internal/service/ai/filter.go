package ai

import "objectscanner/internal/model"

// Postprocessor transforms raw model output.
type Postprocessor func([]model.BoxDetection) []model.BoxDetection

// ScoreFilter keeps detections scoring strictly above threshold, in their original order.
func ScoreFilter(threshold float64) Postprocessor {
	return func(in []model.BoxDetection) []model.BoxDetection {
		out := make([]model.BoxDetection, 0, len(in))
		for _, d := range in {
			if d.Score > threshold {
				out = append(out, d)
			}
		}
		return out
	}
}
