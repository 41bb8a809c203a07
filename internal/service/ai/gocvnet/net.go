// Package gocvnet runs an SSD MobileNet COCO network through OpenCV's DNN module.
package gocvnet

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"objectscanner/internal/apperror"
	"objectscanner/internal/logger"
	"objectscanner/internal/model"
	"objectscanner/internal/service/ai"

	"gocv.io/x/gocv"
)

// Options locate the network files and tune preprocessing.
type Options struct {
	ModelPath         string
	ConfigPath        string
	LabelsPath        string
	MaxImageDimension int // Downscale larger images before inference, 0 disables
}

// Net is a loaded detection network. It implements ai.ModelHandle.
type Net struct {
	net          gocv.Net
	labels       Labels
	maxDimension int
	logger       *logger.Logger
	mu           sync.Mutex // gocv.Net is not safe for concurrent Forward calls
}

// Loader returns an ai.LoadFunc that reads the network described by opts.
func Loader(opts Options, logger *logger.Logger) ai.LoadFunc {
	return func(ctx context.Context) (ai.ModelHandle, error) {
		return Load(opts, logger)
	}
}

// Load reads the DNN network and sets backend/target preferences.
func Load(opts Options, logger *logger.Logger) (*Net, error) {
	if _, err := os.Stat(opts.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", opts.ModelPath)
	}
	if _, err := os.Stat(opts.ConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", opts.ConfigPath)
	}

	labels, err := LoadLabels(opts.LabelsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(opts.ModelPath, opts.ConfigPath)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	if logger != nil {
		logger.Info("Detection network initialized from %s", opts.ModelPath)
	}

	return &Net{
		net:          net,
		labels:       labels,
		maxDimension: opts.MaxImageDimension,
		logger:       logger,
	}, nil
}

// Detect decodes imageData, runs the network and returns every prediction
// with its box in the pixel space of the original image.
func (n *Net) Detect(ctx context.Context, imageData []byte) ([]model.BoxDetection, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrDecodeFailed, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("%w: decoded image is empty", apperror.ErrDecodeFailed)
	}

	cols, rows := mat.Cols(), mat.Rows()

	input := mat
	if scaled, ok := n.downscale(mat); ok {
		defer scaled.Close()
		input = scaled
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Blob parameters match the SSD COCO network input.
	blob := gocv.BlobFromImage(input, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	n.mu.Lock()
	n.net.SetInput(blob, "")
	output := n.net.Forward("")
	n.mu.Unlock()
	defer output.Close()

	// Each row: [batch_id, class_id, confidence, x1, y1, x2, y2], coordinates normalized.
	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	results := make([]model.BoxDetection, 0, reshaped.Rows())
	for i := 0; i < reshaped.Rows(); i++ {
		confidence := reshaped.GetFloatAt(i, 2)
		classID := int(reshaped.GetFloatAt(i, 1))
		left := float64(reshaped.GetFloatAt(i, 3)) * float64(cols)
		top := float64(reshaped.GetFloatAt(i, 4)) * float64(rows)
		right := float64(reshaped.GetFloatAt(i, 5)) * float64(cols)
		bottom := float64(reshaped.GetFloatAt(i, 6)) * float64(rows)

		results = append(results, model.BoxDetection{
			BBox:  [4]float64{left, top, right - left, bottom - top},
			Class: n.labels.Label(classID),
			Score: float64(confidence),
		})
	}

	return results, nil
}

// downscale shrinks mat to fit maxDimension, keeping the aspect ratio.
func (n *Net) downscale(mat gocv.Mat) (gocv.Mat, bool) {
	cols, rows := mat.Cols(), mat.Rows()
	longest := cols
	if rows > longest {
		longest = rows
	}
	if n.maxDimension <= 0 || longest <= n.maxDimension {
		return gocv.Mat{}, false
	}

	scale := float64(n.maxDimension) / float64(longest)
	size := image.Pt(int(float64(cols)*scale), int(float64(rows)*scale))

	scaled := gocv.NewMat()
	if err := gocv.Resize(mat, &scaled, size, 0, 0, gocv.InterpolationArea); err != nil {
		scaled.Close()
		if n.logger != nil {
			n.logger.Warning("Failed to downscale image, using original size: %v", err)
		}
		return gocv.Mat{}, false
	}
	return scaled, true
}

// Close releases the network.
func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}
