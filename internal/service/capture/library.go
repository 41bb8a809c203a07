package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MediaLibrary is the device's shared photo storage.
type MediaLibrary interface {
	Save(ctx context.Context, path string) error
}

// DirectoryLibrary stores copies of captured photos in a shared directory.
type DirectoryLibrary struct {
	Dir string
}

// NewDirectoryLibrary creates a library rooted at dir.
func NewDirectoryLibrary(dir string) *DirectoryLibrary {
	return &DirectoryLibrary{Dir: dir}
}

// Save copies path into the library under its own file name.
func (l *DirectoryLibrary) Save(ctx context.Context, path string) error {
	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create media library: %w", err)
	}
	return copyFile(path, filepath.Join(l.Dir, filepath.Base(path)))
}

// copyFile copies src to a new file at dst. dst must not exist; a partial
// copy is removed.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return nil
}
