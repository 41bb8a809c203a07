// Package main identifies the items on a single photo from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"objectscanner/internal/app"
	"objectscanner/internal/apperror"
	"objectscanner/internal/config"
	"objectscanner/internal/dto"
	"objectscanner/internal/logger"
	"objectscanner/internal/service/ai"
	"objectscanner/internal/service/capture"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	flagImage   = "image"
	flagCapture = "capture"
	flagFacing  = "facing"
	flagTimeout = "timeout"
)

func main() {
	identifyApp := &cli.App{
		Name:      "identify",
		Usage:     "identify the items on a photo",
		UsageText: "identify --image <path> | identify --capture [--facing front]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagImage,
				Aliases: []string{"i"},
				Usage:   "identify the image at `PATH` (a path or file:// URI)",
			},
			&cli.BoolFlag{
				Name:  flagCapture,
				Usage: "take a photo with the configured camera first",
			},
			&cli.StringFlag{
				Name:  flagFacing,
				Value: dto.FacingBack,
				Usage: "camera facing for --capture (back or front)",
			},
			&cli.DurationFlag{
				Name:  flagTimeout,
				Value: 2 * time.Minute,
				Usage: "give up after this long",
			},
		},
		Action: identifyAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := identifyApp.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func identifyAction(c *cli.Context) error {
	if c.String(flagImage) == "" && !c.Bool(flagCapture) {
		return cli.Exit("either --image or --capture is required", 2)
	}

	cfg := config.Load()
	logger := logger.NewFileLogger(cfg)

	ctx, cancel := context.WithTimeout(c.Context, c.Duration(flagTimeout))
	err := run(ctx, c, cfg, logger)
	cancel()

	if err != nil {
		logger.Error("identify failed [%s]: %v", apperror.Kind(err), err)
		logger.Close()
		return cli.Exit(apperror.UserMessage(err), 1)
	}
	return logger.Close()
}

func run(ctx context.Context, c *cli.Context, cfg *config.Config, logger *logger.Logger) error {
	imageURI := c.String(flagImage)
	if c.Bool(flagCapture) {
		device, err := app.NewDevice(cfg, logger)
		if err != nil {
			return err
		}
		captures := capture.NewService(cfg, device, nil, nil, logger)
		defer captures.Close()

		taken, err := captures.Capture(ctx, dto.CaptureOptions{Facing: c.String(flagFacing)})
		if err != nil {
			return err
		}
		imageURI = taken.URI
		fmt.Fprintf(c.App.ErrWriter, "Saved %s\n", taken.FilePath)
	}

	identifier, closeIdentifier, err := app.NewIdentifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeIdentifier()

	detections, err := identifier.Identify(ctx, imageURI)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(c.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		ImageURI   string              `json:"imageUri"`
		Detections []dto.DetectionView `json:"detections"`
	}{
		ImageURI:   absoluteURI(imageURI),
		Detections: dto.NewDetectionViews(detections),
	})
}

// absoluteURI normalizes a path or file URI to an absolute file URI.
func absoluteURI(imageURI string) string {
	path, err := ai.PathFromURI(imageURI)
	if err != nil {
		return imageURI
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return ai.FileURI(path)
}
