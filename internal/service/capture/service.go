// Package capture takes still photos and stores them where the
// identification stage can read them.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"objectscanner/internal/apperror"
	"objectscanner/internal/config"
	"objectscanner/internal/dto"
	"objectscanner/internal/logger"
	"objectscanner/internal/model"
	"objectscanner/internal/repository"
	"objectscanner/internal/service/ai"
)

// ErrBusy is returned when a capture is requested while another one is in flight.
var ErrBusy = errors.New("capture already in progress")

// FilenamePrefix starts every persisted capture name.
const FilenamePrefix = "object_detection_"

// Service captures photos one at a time.
type Service struct {
	device         Device
	library        MediaLibrary
	captureRepo    repository.CaptureRepository
	imagesDir      string
	defaultQuality float64
	logger         *logger.Logger
	now            func() time.Time

	busy atomic.Bool
}

// NewService creates a capture service. library and captureRepo may be nil.
func NewService(config *config.Config, device Device, library MediaLibrary, captureRepo repository.CaptureRepository, logger *logger.Logger) *Service {
	return &Service{
		device:         device,
		library:        library,
		captureRepo:    captureRepo,
		imagesDir:      config.ImageDirectory,
		defaultQuality: config.CaptureQuality,
		logger:         logger,
		now:            time.Now,
	}
}

// Busy reports whether a capture is in flight.
func (s *Service) Busy() bool {
	return s.busy.Load()
}

// Capture takes one photo and copies it to the image directory. A call
// made while another capture is pending returns ErrBusy and does nothing.
func (s *Service) Capture(ctx context.Context, opts dto.CaptureOptions) (*model.Capture, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	opts = opts.WithDefaults(s.defaultQuality)

	tmpPath, err := s.device.Capture(ctx, opts)
	if err != nil {
		s.logger.Error("Camera capture failed: %v", err)
		if errors.Is(err, apperror.ErrPermissionDenied) || errors.Is(err, apperror.ErrCaptureFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperror.ErrCaptureFailed, err)
	}
	defer os.Remove(tmpPath)

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating image directory: %v", err)
		return nil, fmt.Errorf("%w: %v", apperror.ErrCaptureFailed, err)
	}

	takenAt, fullpath, err := s.persist(tmpPath)
	if err != nil {
		s.logger.Error("Error saving capture: %v", err)
		return nil, fmt.Errorf("%w: %v", apperror.ErrCaptureFailed, err)
	}

	if s.library != nil {
		if err := s.library.Save(ctx, tmpPath); err != nil {
			s.logger.Warning("Could not save photo to media library: %v", err)
		}
	}

	info, err := os.Stat(fullpath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrCaptureFailed, err)
	}

	c := &model.Capture{
		Filename: filepath.Base(fullpath),
		FilePath: fullpath,
		URI:      ai.FileURI(fullpath),
		TakenAt:  takenAt,
		FileSize: info.Size(),
		Facing:   opts.Facing,
		Flash:    opts.Flash,
		Quality:  opts.Quality,
	}

	if s.captureRepo != nil {
		id, err := s.captureRepo.Insert(c)
		if err != nil {
			s.logger.Error("Error saving capture to database %s: %v", c.Filename, err)
		} else {
			c.ID = id
		}
	}

	s.logger.Info("Saved capture %s (%d bytes)", c.Filename, c.FileSize)
	return c, nil
}

// persist copies src to a timestamped file in the image directory. The
// millisecond stamp is advanced until the name is free.
func (s *Service) persist(src string) (time.Time, string, error) {
	absDir, err := filepath.Abs(s.imagesDir)
	if err != nil {
		return time.Time{}, "", err
	}

	takenAt := s.now()
	for attempt := 0; attempt < 1000; attempt++ {
		stamp := takenAt.Add(time.Duration(attempt) * time.Millisecond)
		fullpath := filepath.Join(absDir, Filename(stamp))

		err := copyFile(src, fullpath)
		if err == nil {
			return stamp, fullpath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return time.Time{}, "", err
		}
	}
	return time.Time{}, "", fmt.Errorf("no free file name near %s", Filename(takenAt))
}

// Filename returns the persisted name of a capture taken at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("%s%d.jpg", FilenamePrefix, t.UnixMilli())
}

// ParseFilename returns the capture time encoded in a persisted name.
func ParseFilename(name string) (time.Time, error) {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, FilenamePrefix), ".jpg")
	if stamp == name || len(stamp)+len(FilenamePrefix)+len(".jpg") != len(name) {
		return time.Time{}, fmt.Errorf("invalid capture filename: %s", name)
	}

	millis, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil || millis < 0 {
		return time.Time{}, fmt.Errorf("invalid capture filename: %s", name)
	}
	return time.UnixMilli(millis), nil
}

// Close releases the camera device.
func (s *Service) Close() error {
	return s.device.Close()
}
