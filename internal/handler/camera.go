package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"objectscanner/internal/apperror"
	"objectscanner/internal/dto"
	"objectscanner/internal/logger"
	"objectscanner/internal/model"
	"objectscanner/internal/service/analysis"
	"objectscanner/internal/service/capture"
)

// CaptureHandler handles POST /api/capture: takes a photo with the JSON
// options in the body and starts identifying it. A request made while a
// capture is pending gets 409 and produces no photo.
func CaptureHandler(captures *capture.Service, analyses *analysis.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var opts dto.CaptureOptions
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid capture options", http.StatusBadRequest)
			return
		}

		c, err := captures.Capture(r.Context(), opts)
		if errors.Is(err, capture.ErrBusy) {
			writeError(w, http.StatusConflict, "Capture already in progress")
			return
		}
		if err != nil {
			writeError(w, apperror.HTTPStatus(err), apperror.UserMessage(err))
			return
		}

		state := analyses.Start(c.URI, c.ID)
		logger.Info("Capture %s queued for analysis %s", c.Filename, state.ID)

		writeJSON(w, logger, http.StatusCreated, dto.CaptureResponse{
			Capture:  captureInfo(c, nil),
			Analysis: &state,
		})
	}
}

func captureInfo(c *model.Capture, detections []model.Detection) dto.CaptureInfo {
	info := dto.CaptureInfo{
		ID:      c.ID,
		Name:    c.Filename,
		URI:     c.URI,
		TakenAt: c.TakenAt,
		Size:    c.FileSize,
	}
	if len(detections) > 0 {
		info.Detections = dto.NewDetectionViews(detections)
	}
	return info
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
