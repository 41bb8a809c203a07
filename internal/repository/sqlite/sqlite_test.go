package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"objectscanner/internal/model"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func newTestCapture(filename string, takenAt time.Time) *model.Capture {
	return &model.Capture{
		Filename: filename,
		FilePath: "/images/" + filename,
		URI:      "file:///images/" + filename,
		TakenAt:  takenAt,
		FileSize: 1024,
		Facing:   "back",
		Flash:    "off",
		Quality:  0.6,
	}
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_Connection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

// ========================================
// Capture Repository Tests
// ========================================

func TestCaptureRepository_InsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)

	takenAt := time.Now().Truncate(time.Second)
	id, err := repo.Insert(newTestCapture("object_detection_1.jpg", takenAt))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("Expected positive ID, got %d", id)
	}

	got, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected capture, got nil")
	}
	if got.Filename != "object_detection_1.jpg" || got.Quality != 0.6 || got.Facing != "back" {
		t.Errorf("Unexpected capture: %+v", got)
	}
	if !got.TakenAt.Equal(takenAt) {
		t.Errorf("Expected taken_at %v, got %v", takenAt, got.TakenAt)
	}

	byName, err := repo.GetByFilename("object_detection_1.jpg")
	if err != nil || byName == nil || byName.ID != id {
		t.Errorf("GetByFilename returned %+v, %v", byName, err)
	}
}

func TestCaptureRepository_DuplicateFilename(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)

	c := newTestCapture("duplicate.jpg", time.Now())
	if _, err := repo.Insert(c); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if _, err := repo.Insert(c); err == nil {
		t.Error("Expected error for duplicate filename, got nil")
	}
}

func TestCaptureRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)

	got, err := repo.GetByID(99999)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing capture, got %+v", got)
	}
}

func TestCaptureRepository_GetAll_Pagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("capture_%d.jpg", i)
		if _, err := repo.Insert(newTestCapture(name, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := repo.GetAll(0, 0)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("Expected 5 captures, got %d", len(all))
	}
	if !all[0].TakenAt.After(all[4].TakenAt) {
		t.Error("Expected newest capture first")
	}

	page, err := repo.GetAll(2, 2)
	if err != nil {
		t.Fatalf("GetAll with pagination failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("Expected 2 captures on page, got %d", len(page))
	}
	if page[0].ID != all[2].ID {
		t.Errorf("Expected page to start at capture %d, got %d", all[2].ID, page[0].ID)
	}

	count, err := repo.GetTotalCount()
	if err != nil || count != 5 {
		t.Errorf("GetTotalCount = %d, %v; expected 5", count, err)
	}
}

// ========================================
// Detection Repository Tests
// ========================================

func TestDetectionRepository_InsertBatch_PreservesOrder(t *testing.T) {
	db := setupTestDB(t)
	captures := NewCaptureRepository(db)
	repo := NewDetectionRepository(db)

	captureID, err := captures.Insert(newTestCapture("boxes.jpg", time.Now()))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	detections := []model.Detection{
		model.BoxDetection{BBox: [4]float64{10, 20, 30, 40}, Class: "person", Score: 0.9},
		model.BoxDetection{BBox: [4]float64{1, 2, 3, 4}, Class: "cup", Score: 0.55},
	}
	if err := repo.InsertBatch(captureID, detections); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	got, err := repo.GetByCaptureID(captureID)
	if err != nil {
		t.Fatalf("GetByCaptureID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(got))
	}
	first, ok := got[0].(model.BoxDetection)
	if !ok || first.Class != "person" || first.BBox != [4]float64{10, 20, 30, 40} {
		t.Errorf("Unexpected first detection: %+v", got[0])
	}
	if got[1].Label() != "cup" {
		t.Errorf("Expected second detection cup, got %s", got[1].Label())
	}
}

func TestDetectionRepository_InsertBatch_ReplacesPreviousAttempt(t *testing.T) {
	db := setupTestDB(t)
	captures := NewCaptureRepository(db)
	repo := NewDetectionRepository(db)

	captureID, err := captures.Insert(newTestCapture("item.jpg", time.Now()))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	first := []model.Detection{model.ItemDetection{ItemName: "cup", Description: "a cup"}}
	second := []model.Detection{model.ItemDetection{ItemName: "mug", Description: "a ceramic mug"}}

	if err := repo.InsertBatch(captureID, first); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if err := repo.InsertBatch(captureID, second); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	got, err := repo.GetByCaptureID(captureID)
	if err != nil {
		t.Fatalf("GetByCaptureID failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(got))
	}
	item, ok := got[0].(model.ItemDetection)
	if !ok || item.ItemName != "mug" || item.Description != "a ceramic mug" {
		t.Errorf("Unexpected item: %+v", got[0])
	}
}

func TestCaptureRepository_DeleteRemovesResults(t *testing.T) {
	db := setupTestDB(t)
	captures := NewCaptureRepository(db)
	detections := NewDetectionRepository(db)

	captureID, err := captures.Insert(newTestCapture("delete.jpg", time.Now()))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := detections.InsertBatch(captureID, []model.Detection{
		model.BoxDetection{Class: "dog", Score: 0.7},
	}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	if err := captures.Delete(captureID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := captures.GetByID(captureID)
	if err != nil || got != nil {
		t.Errorf("Expected capture to be gone, got %+v, %v", got, err)
	}
	left, err := detections.GetByCaptureID(captureID)
	if err != nil {
		t.Fatalf("GetByCaptureID failed: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("Expected no detections after delete, got %d", len(left))
	}
}

func TestDetectionRepository_DeleteByCaptureID(t *testing.T) {
	db := setupTestDB(t)
	captures := NewCaptureRepository(db)
	repo := NewDetectionRepository(db)

	captureID, err := captures.Insert(newTestCapture("clear.jpg", time.Now()))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := repo.InsertBatch(captureID, []model.Detection{
		model.BoxDetection{Class: "cat", Score: 0.9},
		model.ItemDetection{ItemName: "lamp", Description: "a desk lamp"},
	}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	if err := repo.DeleteByCaptureID(captureID); err != nil {
		t.Fatalf("DeleteByCaptureID failed: %v", err)
	}

	left, err := repo.GetByCaptureID(captureID)
	if err != nil {
		t.Fatalf("GetByCaptureID failed: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("Expected no results, got %d", len(left))
	}
	if c, err := captures.GetByID(captureID); err != nil || c == nil {
		t.Errorf("Expected capture to remain, got %+v, %v", c, err)
	}
}
