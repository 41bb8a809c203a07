package sqlite

import (
	"database/sql"
	"fmt"
	"sort"

	"objectscanner/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
// Box detections live in the detections table, item detections in items.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch replaces the stored results of a capture in a single transaction.
func (r *DetectionRepository) InsertBatch(captureID int64, detections []model.Detection) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// A retried analysis overwrites the previous attempt.
	if err := deleteResults(tx, captureID); err != nil {
		return err
	}

	boxStmt, err := tx.Prepare(`
		INSERT INTO detections (capture_id, position, object_name, x, y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer boxStmt.Close()

	itemStmt, err := tx.Prepare(`
		INSERT INTO items (capture_id, position, itemname, description)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer itemStmt.Close()

	for i, d := range detections {
		switch det := d.(type) {
		case model.BoxDetection:
			if _, err := boxStmt.Exec(captureID, i, det.Class, det.BBox[0], det.BBox[1], det.BBox[2], det.BBox[3], det.Score); err != nil {
				return fmt.Errorf("failed to insert detection: %w", err)
			}
		case model.ItemDetection:
			if _, err := itemStmt.Exec(captureID, i, det.ItemName, det.Description); err != nil {
				return fmt.Errorf("failed to insert item: %w", err)
			}
		default:
			return fmt.Errorf("unsupported detection kind %q", d.Kind())
		}
	}

	return tx.Commit()
}

type positioned struct {
	position  int
	detection model.Detection
}

// GetByCaptureID retrieves the results of a capture in their original order.
func (r *DetectionRepository) GetByCaptureID(captureID int64) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var found []positioned

	rows, err := r.db.Conn().Query(`
		SELECT position, object_name, x, y, width, height, confidence
		FROM detections WHERE capture_id = ?
	`, captureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	for rows.Next() {
		var p positioned
		var det model.BoxDetection
		if err := rows.Scan(&p.position, &det.Class, &det.BBox[0], &det.BBox[1], &det.BBox[2], &det.BBox[3], &det.Score); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		p.detection = det
		found = append(found, p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read detections: %w", err)
	}

	itemRows, err := r.db.Conn().Query(`
		SELECT position, itemname, description
		FROM items WHERE capture_id = ?
	`, captureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var p positioned
		var item model.ItemDetection
		if err := itemRows.Scan(&p.position, &item.ItemName, &item.Description); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		p.detection = item
		found = append(found, p)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].position < found[j].position })

	detections := make([]model.Detection, 0, len(found))
	for _, p := range found {
		detections = append(detections, p.detection)
	}
	return detections, nil
}

// DeleteByCaptureID removes all results for a specific capture.
func (r *DetectionRepository) DeleteByCaptureID(captureID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteResults(tx, captureID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteResults(tx *sql.Tx, captureID int64) error {
	if _, err := tx.Exec(`DELETE FROM detections WHERE capture_id = ?`, captureID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM items WHERE capture_id = ?`, captureID); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}
