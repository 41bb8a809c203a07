package sqlite

import (
	"database/sql"
	"fmt"

	"objectscanner/internal/model"
)

const captureColumns = `id, filename, filepath, uri, taken_at, filesize, facing, flash, quality`

// CaptureRepository implements repository.CaptureRepository for SQLite.
type CaptureRepository struct {
	db *DB
}

// NewCaptureRepository creates a new SQLite capture repository.
func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

// Insert adds a new capture record to the database.
func (r *CaptureRepository) Insert(c *model.Capture) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO captures (filename, filepath, uri, taken_at, filesize, facing, flash, quality)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Filename, c.FilePath, c.URI, c.TakenAt, c.FileSize, c.Facing, c.Flash, c.Quality)
	if err != nil {
		return 0, fmt.Errorf("failed to insert capture: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a capture by its ID. It returns nil when nothing matches.
func (r *CaptureRepository) GetByID(id int64) (*model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+captureColumns+` FROM captures WHERE id = ?`, id)
	return scanCapture(row)
}

// GetByFilename retrieves a capture by its filename. It returns nil when nothing matches.
func (r *CaptureRepository) GetByFilename(filename string) (*model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+captureColumns+` FROM captures WHERE filename = ?`, filename)
	return scanCapture(row)
}

// GetAll returns captures newest first.
func (r *CaptureRepository) GetAll(limit, offset int) ([]model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT ` + captureColumns + ` FROM captures ORDER BY taken_at DESC, id DESC`
	args := []interface{}{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var captures []model.Capture
	for rows.Next() {
		var c model.Capture
		if err := rows.Scan(&c.ID, &c.Filename, &c.FilePath, &c.URI, &c.TakenAt, &c.FileSize, &c.Facing, &c.Flash, &c.Quality); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		captures = append(captures, c)
	}

	return captures, rows.Err()
}

// GetTotalCount returns the number of stored captures.
func (r *CaptureRepository) GetTotalCount() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM captures`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}
	return count, nil
}

// Delete removes a capture. Its results go with it through the
// ON DELETE CASCADE foreign keys.
func (r *CaptureRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM captures WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete capture: %w", err)
	}
	return nil
}

func scanCapture(row *sql.Row) (*model.Capture, error) {
	var c model.Capture
	err := row.Scan(&c.ID, &c.Filename, &c.FilePath, &c.URI, &c.TakenAt, &c.FileSize, &c.Facing, &c.Flash, &c.Quality)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return &c, nil
}
