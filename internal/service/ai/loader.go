package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"objectscanner/internal/apperror"
	"objectscanner/internal/model"

	"golang.org/x/sync/singleflight"
)

var errLoaderClosed = errors.New("model loader closed")

// ModelHandle is a loaded detection model.
type ModelHandle interface {
	// Detect runs inference on an encoded image and returns every raw
	// prediction in model order. Undecodable input wraps apperror.ErrDecodeFailed.
	Detect(ctx context.Context, imageData []byte) ([]model.BoxDetection, error)
	Close() error
}

// LoadFunc creates a ModelHandle.
type LoadFunc func(ctx context.Context) (ModelHandle, error)

// ModelLoader loads a model on first use and hands the same handle to
// every later caller. Concurrent callers share one in-flight load. A
// failed load is not cached. Once closed, a loader loads nothing more.
type ModelLoader struct {
	load  LoadFunc
	group singleflight.Group

	mu     sync.RWMutex
	handle ModelHandle
	closed bool
}

// NewModelLoader creates a loader around load.
func NewModelLoader(load LoadFunc) *ModelLoader {
	return &ModelLoader{load: load}
}

// EnsureLoaded returns the loaded model, loading it if needed.
func (l *ModelLoader) EnsureLoaded(ctx context.Context) (ModelHandle, error) {
	l.mu.RLock()
	handle := l.handle
	l.mu.RUnlock()
	if handle != nil {
		return handle, nil
	}

	ch := l.group.DoChan("model", func() (interface{}, error) {
		l.mu.RLock()
		existing, closed := l.handle, l.closed
		l.mu.RUnlock()
		if closed {
			return nil, errLoaderClosed
		}
		if existing != nil {
			return existing, nil
		}

		// Shared by every waiter, not bound to this caller's cancellation.
		h, err := l.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, fmt.Errorf("loader returned no model")
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			h.Close()
			return nil, errLoaderClosed
		}
		l.handle = h
		l.mu.Unlock()
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %v", apperror.ErrModelInitializationFailed, res.Err)
		}
		return res.Val.(ModelHandle), nil
	}
}

// Loaded reports whether a model is currently held.
func (l *ModelLoader) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.handle != nil
}

// Close releases the model if one was loaded. A load still in flight
// releases its model when it finishes.
func (l *ModelLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.handle == nil {
		return nil
	}
	err := l.handle.Close()
	l.handle = nil
	return err
}
