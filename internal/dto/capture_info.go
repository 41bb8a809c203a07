package dto

import (
	"encoding/json"
	"time"
)

// CaptureInfo describes a stored capture and what was found on it.
type CaptureInfo struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	URI        string          `json:"uri"`
	TakenAt    time.Time       `json:"takenAt"`
	Size       int64           `json:"size"`
	Detections []DetectionView `json:"detections,omitempty"`
}

// MarshalJSON formats TakenAt as date and time-of-day fields for the gallery.
func (c CaptureInfo) MarshalJSON() ([]byte, error) {
	type Alias CaptureInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      c.TakenAt.Format("02-01-2006"),
		TimeOfDay: c.TakenAt.Format("15:04"),
		Alias:     (Alias)(c),
	})
}

// CapturesData is a paginated response payload for the captures gallery.
type CapturesData struct {
	Captures    []CaptureInfo `json:"captures"`
	Length      int           `json:"length"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int           `json:"pageSize"`
}
