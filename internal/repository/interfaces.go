package repository

import (
	"objectscanner/internal/model"
)

// CaptureRepository defines the interface for capture data operations.
type CaptureRepository interface {
	// Create operations
	Insert(c *model.Capture) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Capture, error)
	GetByFilename(filename string) (*model.Capture, error)
	GetAll(limit, offset int) ([]model.Capture, error)
	GetTotalCount() (int, error)

	// Delete operations
	Delete(id int64) error
}

// DetectionRepository defines the interface for identification results.
type DetectionRepository interface {
	// Create operations
	InsertBatch(captureID int64, detections []model.Detection) error

	// Read operations
	GetByCaptureID(captureID int64) ([]model.Detection, error)

	// Delete operations
	DeleteByCaptureID(captureID int64) error
}
