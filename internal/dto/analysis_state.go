package dto

import "time"

// AnalysisStatus is the observable state of an identification task.
type AnalysisStatus string

const (
	StatusLoading   AnalysisStatus = "loading"
	StatusError     AnalysisStatus = "error"
	StatusPopulated AnalysisStatus = "populated"
)

// AnalysisState is a snapshot of one identification task.
type AnalysisState struct {
	ID         string          `json:"id"`
	ImageURI   string          `json:"imageUri"`
	CaptureID  int64           `json:"captureId,omitempty"`
	Status     AnalysisStatus  `json:"status"`
	Error      string          `json:"error,omitempty"`
	Detections []DetectionView `json:"detections"`
	Attempt    int             `json:"attempt"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// CaptureResponse is returned by the capture endpoint: the stored photo
// and the analysis that was started for it.
type CaptureResponse struct {
	Capture  CaptureInfo    `json:"capture"`
	Analysis *AnalysisState `json:"analysis"`
}
