package dto

import "objectscanner/internal/model"

const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// DetectionView is the presentation form of a model.Detection.
type DetectionView struct {
	Kind model.Kind `json:"kind"`

	// Box detections
	Class      string      `json:"class,omitempty"`
	BBox       *[4]float64 `json:"bbox,omitempty"`
	Score      *float64    `json:"score,omitempty"`
	Confidence string      `json:"confidence,omitempty"`
	Color      string      `json:"color,omitempty"`

	// Item detections
	ItemName    string `json:"itemname,omitempty"`
	Description string `json:"description,omitempty"`
}

// ConfidenceBucket returns the confidence label and display color for score.
func ConfidenceBucket(score float64) (string, string) {
	switch {
	case score >= 0.8:
		return ConfidenceHigh, "green"
	case score >= 0.6:
		return ConfidenceMedium, "yellow"
	default:
		return ConfidenceLow, "red"
	}
}

// NewDetectionViews renders detections in their original order.
func NewDetectionViews(detections []model.Detection) []DetectionView {
	views := make([]DetectionView, 0, len(detections))
	for _, d := range detections {
		switch det := d.(type) {
		case model.BoxDetection:
			bbox := det.BBox
			score := det.Score
			bucket, color := ConfidenceBucket(score)
			views = append(views, DetectionView{
				Kind:       model.KindBox,
				Class:      det.Class,
				BBox:       &bbox,
				Score:      &score,
				Confidence: bucket,
				Color:      color,
			})
		case model.ItemDetection:
			views = append(views, DetectionView{
				Kind:        model.KindItem,
				ItemName:    det.ItemName,
				Description: det.Description,
			})
		}
	}
	return views
}
