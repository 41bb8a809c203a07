// Package webcam captures stills from a local camera through OpenCV.
package webcam

import (
	"context"
	"fmt"
	"os"
	"sync"

	"objectscanner/internal/apperror"
	"objectscanner/internal/config"
	"objectscanner/internal/dto"
	"objectscanner/internal/logger"

	"gocv.io/x/gocv"
)

// Device opens one VideoCapture per facing on first use and keeps it open.
type Device struct {
	deviceIDs map[string]int
	captures  map[string]*gocv.VideoCapture
	tempDir   string
	logger    *logger.Logger
	mu        sync.Mutex
}

// NewDevice creates a webcam device using the configured device IDs.
func NewDevice(config *config.Config, logger *logger.Logger) *Device {
	return &Device{
		deviceIDs: map[string]int{
			dto.FacingBack:  config.CameraBackDevice,
			dto.FacingFront: config.CameraFrontDevice,
		},
		captures: make(map[string]*gocv.VideoCapture),
		tempDir:  os.TempDir(),
		logger:   logger,
	}
}

// Capture grabs a single frame and writes it as a JPEG temp file.
func (d *Device) Capture(ctx context.Context, opts dto.CaptureOptions) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	vc, err := d.open(opts.Facing)
	if err != nil {
		return "", err
	}

	if opts.Flash != dto.FlashOff {
		d.logger.Warning("Flash mode %q is not supported by this camera, ignoring", opts.Flash)
	}

	frame := gocv.NewMat()
	defer frame.Close()

	if ok := vc.Read(&frame); !ok || frame.Empty() {
		return "", fmt.Errorf("%w: camera returned no frame", apperror.ErrCaptureFailed)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(d.tempDir, "capture-*.jpg")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", apperror.ErrCaptureFailed, err)
	}
	path := tmp.Name()
	tmp.Close()

	if ok := gocv.IMWriteWithParams(path, frame, []int{int(gocv.IMWriteJpegQuality), opts.JPEGQuality()}); !ok {
		os.Remove(path)
		return "", fmt.Errorf("%w: failed to encode frame", apperror.ErrCaptureFailed)
	}

	return path, nil
}

// open returns the VideoCapture for facing, opening it on first use.
func (d *Device) open(facing string) (*gocv.VideoCapture, error) {
	if vc, ok := d.captures[facing]; ok {
		return vc, nil
	}

	id, ok := d.deviceIDs[facing]
	if !ok {
		return nil, fmt.Errorf("%w: unknown camera facing %q", apperror.ErrCaptureFailed, facing)
	}

	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: camera %d: %v", apperror.ErrPermissionDenied, id, err)
		}
		return nil, fmt.Errorf("%w: open camera %d: %v", apperror.ErrCaptureFailed, id, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: camera %d is not available", apperror.ErrPermissionDenied, id)
	}

	d.logger.Info("Opened %s camera (device %d)", facing, id)
	d.captures[facing] = vc
	return vc, nil
}

// Close releases every opened camera.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for facing, vc := range d.captures {
		if err := vc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.captures, facing)
	}
	return firstErr
}
