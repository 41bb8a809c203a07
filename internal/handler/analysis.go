package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"objectscanner/internal/config"
	"objectscanner/internal/logger"
	"objectscanner/internal/service/ai"
	"objectscanner/internal/service/analysis"

	"github.com/gorilla/mux"
)

type startAnalysisRequest struct {
	ImageURI string `json:"imageUri"`
}

// StartAnalysisHandler starts identifying the image named in the body and
// returns the task in loading state. Only images inside the capture
// directory are accepted.
func StartAnalysisHandler(cfg *config.Config, analyses *analysis.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startAnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageURI == "" {
			http.Error(w, "imageUri required", http.StatusBadRequest)
			return
		}

		path, err := imagePathWithin(cfg.ImageDirectory, req.ImageURI)
		if err != nil {
			logger.Warning("Rejected analysis of %s: %v", req.ImageURI, err)
			http.Error(w, "imageUri must name an image in the capture directory", http.StatusBadRequest)
			return
		}

		state := analyses.Start(ai.FileURI(path), 0)
		writeJSON(w, logger, http.StatusAccepted, state)
	}
}

// ListAnalysesHandler returns every task the manager still tracks.
func ListAnalysesHandler(analyses *analysis.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, analyses.List())
	}
}

// GetAnalysisHandler returns the current state of one task.
func GetAnalysisHandler(analyses *analysis.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := analyses.Get(mux.Vars(r)["id"])
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, logger, http.StatusOK, state)
	}
}

// RetryAnalysisHandler re-runs identification for a settled task.
func RetryAnalysisHandler(analyses *analysis.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := analyses.Retry(mux.Vars(r)["id"])
		if errors.Is(err, analysis.ErrTaskNotFound) {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, logger, http.StatusAccepted, state)
	}
}

// AbandonAnalysisHandler cancels a task and stops tracking it.
func AbandonAnalysisHandler(analyses *analysis.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := analyses.Abandon(mux.Vars(r)["id"]); errors.Is(err, analysis.ErrTaskNotFound) {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// imagePathWithin resolves imageURI to a regular file and fails unless it
// lies inside dir once symlinks are followed.
func imagePathWithin(dir, imageURI string) (string, error) {
	root, err := resolvePath(dir)
	if err != nil {
		return "", err
	}
	path, err := ai.PathFromURI(imageURI)
	if err != nil {
		return "", err
	}
	path, err = resolvePath(path)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, root)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}
	return path, nil
}

func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
