package model

import "time"

// Capture represents a persisted still image.
type Capture struct {
	ID       int64     `json:"id"`
	Filename string    `json:"filename"`
	FilePath string    `json:"filepath"`
	URI      string    `json:"uri"`
	TakenAt  time.Time `json:"taken_at"`
	FileSize int64     `json:"filesize"`
	Facing   string    `json:"facing"`
	Flash    string    `json:"flash"`
	Quality  float64   `json:"quality"`
}
