package capture

import (
	"context"
	"fmt"
	"os"

	"objectscanner/internal/apperror"
	"objectscanner/internal/dto"

	"github.com/disintegration/imaging"
)

// Device takes a single still photo and returns the path of a transient
// JPEG file. The caller owns the file afterwards.
type Device interface {
	Capture(ctx context.Context, opts dto.CaptureOptions) (string, error)
	Close() error
}

// FileDevice serves a still image from disk as if it came from a camera.
// The image is re-encoded at the requested quality, mirrored for the
// front camera and fitted into MaxDimension when set.
type FileDevice struct {
	SourcePath   string
	TempDir      string
	MaxDimension int
}

// NewFileDevice creates a device that reads its frames from sourcePath.
func NewFileDevice(sourcePath string, maxDimension int) *FileDevice {
	return &FileDevice{
		SourcePath:   sourcePath,
		TempDir:      os.TempDir(),
		MaxDimension: maxDimension,
	}
}

// Capture implements Device.
func (d *FileDevice) Capture(ctx context.Context, opts dto.CaptureOptions) (string, error) {
	if d.SourcePath == "" {
		return "", fmt.Errorf("%w: no still image configured", apperror.ErrCaptureFailed)
	}

	img, err := imaging.Open(d.SourcePath, imaging.AutoOrientation(true))
	if err != nil {
		if os.IsPermission(err) {
			return "", fmt.Errorf("%w: %v", apperror.ErrPermissionDenied, err)
		}
		return "", fmt.Errorf("%w: open still: %v", apperror.ErrCaptureFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if d.MaxDimension > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > d.MaxDimension || bounds.Dy() > d.MaxDimension {
			img = imaging.Fit(img, d.MaxDimension, d.MaxDimension, imaging.Lanczos)
		}
	}
	if opts.Facing == dto.FacingFront {
		img = imaging.FlipH(img)
	}

	tmp, err := os.CreateTemp(d.TempDir, "capture-*.jpg")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", apperror.ErrCaptureFailed, err)
	}
	defer tmp.Close()

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(opts.JPEGQuality())); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: encode still: %v", apperror.ErrCaptureFailed, err)
	}

	return tmp.Name(), nil
}

// Close implements Device.
func (d *FileDevice) Close() error {
	return nil
}
