package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"objectscanner/internal/dto"
	"objectscanner/internal/model"
	"objectscanner/internal/repository/sqlite"
	"objectscanner/internal/service/ai"
	"objectscanner/internal/service/capture"
)

// migrate registers captures found in the image directory that have no
// database record yet, e.g. after the database was deleted.
func main() {
	imagesDir := flag.String("images", "images", "Directory containing captures")
	dbPath := flag.String("db", "data/captures.db", "Database path")
	flag.Parse()

	fmt.Printf("Registering captures from %s in database %s\n", *imagesDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewCaptureRepository(db)

	absDir, err := filepath.Abs(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to resolve images directory: %v", err)
	}

	files, err := os.ReadDir(absDir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	added, existing, skipped := 0, 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		takenAt, err := capture.ParseFilename(file.Name())
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		if c, err := repo.GetByFilename(file.Name()); err != nil {
			log.Fatalf("Failed to look up %s: %v", file.Name(), err)
		} else if c != nil {
			existing++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		if _, err := repo.Insert(recoveredCapture(absDir, file.Name(), takenAt, info.Size())); err != nil {
			log.Fatalf("Failed to insert %s: %v", file.Name(), err)
		}
		added++
	}

	fmt.Printf("Registered %d captures (%d already present)\n", added, existing)
	if skipped > 0 {
		fmt.Printf("Skipped %d files (invalid name or errors)\n", skipped)
	}

	total, err := repo.GetTotalCount()
	if err == nil {
		fmt.Printf("Total captures: %d\n", total)
	}
}

// recoveredCapture builds the record for a file found on disk. The camera
// settings it was taken with are unknown, so the capture defaults apply.
func recoveredCapture(dir, name string, takenAt time.Time, size int64) *model.Capture {
	fullpath := filepath.Join(dir, name)
	return &model.Capture{
		Filename: name,
		FilePath: fullpath,
		URI:      ai.FileURI(fullpath),
		TakenAt:  takenAt,
		FileSize: size,
		Facing:   dto.FacingBack,
		Flash:    dto.FlashOff,
	}
}
