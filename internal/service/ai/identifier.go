// Package ai turns a captured image into detections.
//
// Two strategies implement Identifier: LocalIdentifier runs an on-device
// detection model and returns box detections, RemoteIdentifier uploads
// the photo to a vision API and returns a single item detection. The
// strategy is chosen once when the application is composed.
package ai

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"objectscanner/internal/apperror"
	"objectscanner/internal/model"
)

// Identifier maps an image URI to zero or more detections.
type Identifier interface {
	Identify(ctx context.Context, imageURI string) ([]model.Detection, error)
}

// PathFromURI resolves a file:// URI or a plain path to a filesystem path.
func PathFromURI(imageURI string) (string, error) {
	if imageURI == "" {
		return "", fmt.Errorf("%w: empty image uri", apperror.ErrFileNotFound)
	}
	if !strings.HasPrefix(imageURI, "file:") {
		return filepath.Clean(imageURI), nil
	}

	u, err := url.Parse(imageURI)
	if err != nil {
		return "", fmt.Errorf("%w: invalid image uri %q: %v", apperror.ErrFileNotFound, imageURI, err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("%w: non-local image uri %q", apperror.ErrFileNotFound, imageURI)
	}
	return filepath.FromSlash(u.Path), nil
}

// FileURI returns the file:// URI for an absolute path.
func FileURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// statImage verifies the image exists and is a regular file.
func statImage(imageURI string) (string, error) {
	path, err := PathFromURI(imageURI)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", apperror.ErrFileNotFound, path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", apperror.ErrFileNotFound, path)
	}
	return path, nil
}
