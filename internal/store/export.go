package store

import (
	"database/sql"
	"errors"
	"time"
)

// ExportRecord describes a file written by the exporter.
type ExportRecord struct {
	ID        string
	Filename  string
	Format    string
	Width     int
	Height    int
	Thumbnail string
	CreatedAt time.Time
}

// ExportRepository provides access to export records.
type ExportRepository struct {
	db *sql.DB
}

// Exports returns the export repository for this store.
func (s *Store) Exports() *ExportRepository {
	return &ExportRepository{db: s.db}
}

// Create inserts a new export record. A zero CreatedAt is set to now.
func (r *ExportRepository) Create(e *ExportRecord) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO exports (id, filename, format, width, height, thumbnail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Filename, e.Format, e.Width, e.Height, e.Thumbnail, e.CreatedAt,
	)
	return err
}

// GetByID retrieves an export record by its ID.
func (r *ExportRepository) GetByID(id string) (*ExportRecord, error) {
	e := &ExportRecord{}
	err := r.db.QueryRow(
		`SELECT id, filename, format, width, height, thumbnail, created_at
		 FROM exports WHERE id = ?`,
		id,
	).Scan(&e.ID, &e.Filename, &e.Format, &e.Width, &e.Height, &e.Thumbnail, &e.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns export records, newest first. A non-positive limit returns all.
func (r *ExportRepository) List(limit int) ([]*ExportRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, filename, format, width, height, thumbnail, created_at
		 FROM exports ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ExportRecord
	for rows.Next() {
		e := &ExportRecord{}
		if err := rows.Scan(&e.ID, &e.Filename, &e.Format, &e.Width, &e.Height, &e.Thumbnail, &e.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Delete removes an export record by its ID.
func (r *ExportRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
