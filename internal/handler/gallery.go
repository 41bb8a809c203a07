package handler

import (
	"net/http"
	"os"
	"strconv"

	"objectscanner/internal/dto"
	"objectscanner/internal/logger"
	"objectscanner/internal/model"
	"objectscanner/internal/repository"

	"github.com/gorilla/mux"
)

// GetCapturesHandler returns a page of stored captures, newest first.
func GetCapturesHandler(logger *logger.Logger, captureRepo repository.CaptureRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, limit := pagination(q.Get("page"), q.Get("limit"))

		captures, err := captureRepo.GetAll(limit, (page-1)*limit)
		if err != nil {
			logger.Error("Error querying captures from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := captureRepo.GetTotalCount()
		if err != nil {
			logger.Error("Error counting captures: %v", err)
			totalCount = len(captures)
		}

		infos := make([]dto.CaptureInfo, 0, len(captures))
		for i := range captures {
			infos = append(infos, captureInfo(&captures[i], nil))
		}

		writeJSON(w, logger, http.StatusOK, dto.CapturesData{
			Captures:    infos,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// GetCaptureHandler returns one capture with its stored detections.
func GetCaptureHandler(logger *logger.Logger, captureRepo repository.CaptureRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookupCapture(w, r, logger, captureRepo)
		if !ok {
			return
		}

		var detections []model.Detection
		if detectionRepo != nil {
			var err error
			detections, err = detectionRepo.GetByCaptureID(c.ID)
			if err != nil {
				logger.Error("Error getting detections for capture %d: %v", c.ID, err)
			}
		}

		writeJSON(w, logger, http.StatusOK, captureInfo(c, detections))
	}
}

// ViewCaptureHandler serves the JPEG of a stored capture.
func ViewCaptureHandler(logger *logger.Logger, captureRepo repository.CaptureRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookupCapture(w, r, logger, captureRepo)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, c.FilePath)
	}
}

// DeleteCaptureHandler removes a capture and its results from disk and database.
func DeleteCaptureHandler(logger *logger.Logger, captureRepo repository.CaptureRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookupCapture(w, r, logger, captureRepo)
		if !ok {
			return
		}

		if err := os.Remove(c.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", c.FilePath, err)
		}
		if detectionRepo != nil {
			if err := detectionRepo.DeleteByCaptureID(c.ID); err != nil {
				logger.Error("Failed to delete results of capture %d: %v", c.ID, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}
		if err := captureRepo.Delete(c.ID); err != nil {
			logger.Error("Failed to delete capture %d from database: %v", c.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted capture: %s", c.Filename)
		w.WriteHeader(http.StatusNoContent)
	}
}

// lookupCapture resolves the {id} route variable. It writes the error
// response itself and reports false when the capture cannot be served.
func lookupCapture(w http.ResponseWriter, r *http.Request, logger *logger.Logger, captureRepo repository.CaptureRepository) (*model.Capture, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid capture id", http.StatusBadRequest)
		return nil, false
	}

	c, err := captureRepo.GetByID(id)
	if err != nil {
		logger.Error("Error loading capture %d: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if c == nil {
		http.NotFound(w, r)
		return nil, false
	}
	return c, true
}

const (
	defaultPageSize = 24
	maxPageSize     = 100
	maxPage         = 1000000
)

// pagination parses the page and limit query values, clamping both so the
// resulting offset stays small and positive.
func pagination(pageParam, limitParam string) (page, limit int) {
	page = atoiDefault(pageParam, 1)
	if page > maxPage {
		page = maxPage
	}
	limit = atoiDefault(limitParam, defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
