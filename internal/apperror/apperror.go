// Package apperror holds the error kinds shared by the capture and
// identification stages.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AnalysisFailedMessage is the only text shown for identification failures.
const AnalysisFailedMessage = "Failed to analyze image. Please try again."

var (
	ErrPermissionDenied          = errors.New("permission denied")
	ErrCaptureFailed             = errors.New("capture failed")
	ErrFileNotFound              = errors.New("file not found")
	ErrModelInitializationFailed = errors.New("model initialization failed")
	ErrNetworkOrServer           = errors.New("network or server error")
	ErrDecodeFailed              = errors.New("decode failed")
)

// StatusError is returned when the remote endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d %s", ErrNetworkOrServer, e.StatusCode, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrNetworkOrServer
}

// IsAnalysisError reports whether err belongs to the identification stage.
func IsAnalysisError(err error) bool {
	return errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrModelInitializationFailed) ||
		errors.Is(err, ErrNetworkOrServer) ||
		errors.Is(err, ErrDecodeFailed)
}

// Kind returns a short name for the most specific known kind in err's chain.
// Only logs use it.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "PermissionDenied"
	case errors.Is(err, ErrCaptureFailed):
		return "CaptureFailed"
	case errors.Is(err, ErrFileNotFound):
		return "FileNotFound"
	case errors.Is(err, ErrModelInitializationFailed):
		return "ModelInitializationFailed"
	case errors.Is(err, ErrNetworkOrServer):
		return "NetworkOrServerError"
	case errors.Is(err, ErrDecodeFailed):
		return "DecodeFailed"
	default:
		return "Unknown"
	}
}

// UserMessage converts err to the text a viewer is allowed to see.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAnalysisError(err):
		return AnalysisFailedMessage
	case errors.Is(err, ErrPermissionDenied):
		return "Camera access is not permitted."
	case errors.Is(err, ErrCaptureFailed):
		return "Failed to take picture. Please try again."
	default:
		return AnalysisFailedMessage
	}
}

// HTTPStatus maps err to the status code used by the HTTP handlers.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDecodeFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNetworkOrServer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
