// Package store archives loaded MIC datasets and the charts rendered from
// them in a local sqlite database, so a chart can be regenerated later
// without the original CSV.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chrislowzhengxi/data-viz/internal/mic"
	"github.com/chrislowzhengxi/data-viz/internal/timeutil"
)

// ErrNotFound is returned when a dataset reference matches nothing.
var ErrNotFound = errors.New("dataset not found")

// Dataset describes one archived table.
type Dataset struct {
	ID        string
	Name      string
	Source    string
	CreatedAt time.Time
	Records   int
}

// Render is one chart file produced from a dataset.
type Render struct {
	ID        string
	DatasetID string
	Format    string
	Path      string
	CreatedAt time.Time
}

// Store wraps the sqlite handle.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	return OpenWithClock(ctx, path, timeutil.RealClock{})
}

// OpenWithClock is Open with an injectable clock for timestamps.
func OpenWithClock(ctx context.Context, path string, clock timeutil.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// One connection keeps the foreign_keys pragma in force for every query.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, clock: clock}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDataset stores records under a new dataset ID and returns it.
func (s *Store) SaveDataset(ctx context.Context, name, source string, records []mic.Record) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("save dataset %q: %w", name, mic.ErrNoRecords)
	}
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (dataset_id, name, source, created_unix_ms) VALUES (?, ?, ?, ?)`,
		id, name, source, s.clock.Now().UnixMilli(),
	); err != nil {
		return "", fmt.Errorf("failed to insert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO measurements
		(dataset_id, position, bacteria, gram_staining, antibiotic, mic)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare measurement insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, id, i, r.Bacteria, r.GramStaining, r.Antibiotic, r.MIC); err != nil {
			return "", fmt.Errorf("failed to insert measurement %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit dataset: %w", err)
	}
	return id, nil
}

// Resolve maps a dataset ID, or a name (latest wins), to a dataset ID.
func (s *Store) Resolve(ctx context.Context, ref string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT dataset_id FROM datasets WHERE dataset_id = ?
		 UNION ALL
		 SELECT dataset_id FROM (
			SELECT dataset_id FROM datasets WHERE name = ?
			ORDER BY created_unix_ms DESC, rowid DESC LIMIT 1
		 )
		 LIMIT 1`,
		ref, ref,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve dataset %q: %w", ref, err)
	}
	return id, nil
}

// LoadDataset returns the dataset and its records in their original order.
func (s *Store) LoadDataset(ctx context.Context, ref string) (Dataset, []mic.Record, error) {
	id, err := s.Resolve(ctx, ref)
	if err != nil {
		return Dataset{}, nil, err
	}

	var (
		ds        Dataset
		createdMs int64
	)
	if err := s.db.QueryRowContext(ctx,
		`SELECT dataset_id, name, source, created_unix_ms FROM datasets WHERE dataset_id = ?`, id,
	).Scan(&ds.ID, &ds.Name, &ds.Source, &createdMs); err != nil {
		return Dataset{}, nil, fmt.Errorf("failed to load dataset %s: %w", id, err)
	}
	ds.CreatedAt = time.UnixMilli(createdMs).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT bacteria, gram_staining, antibiotic, mic FROM measurements
		 WHERE dataset_id = ? ORDER BY position`, id)
	if err != nil {
		return Dataset{}, nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var records []mic.Record
	for rows.Next() {
		var r mic.Record
		if err := rows.Scan(&r.Bacteria, &r.GramStaining, &r.Antibiotic, &r.MIC); err != nil {
			return Dataset{}, nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return Dataset{}, nil, fmt.Errorf("failed to read measurements: %w", err)
	}
	ds.Records = len(records)
	return ds, records, nil
}

// ListDatasets returns every dataset, newest first, with record counts.
func (s *Store) ListDatasets(ctx context.Context) ([]Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.dataset_id, d.name, d.source, d.created_unix_ms, COUNT(m.position)
		FROM datasets d
		LEFT JOIN measurements m ON m.dataset_id = d.dataset_id
		GROUP BY d.dataset_id
		ORDER BY d.created_unix_ms DESC, d.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		var (
			ds        Dataset
			createdMs int64
		)
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.Source, &createdMs, &ds.Records); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		ds.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, ds)
	}
	return out, rows.Err()
}

// RecordRender notes that a chart file was written from a dataset.
func (s *Store) RecordRender(ctx context.Context, datasetID, format, path string) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO renders (render_id, dataset_id, format, path, created_unix_ms) VALUES (?, ?, ?, ?, ?)`,
		id, datasetID, format, path, s.clock.Now().UnixMilli(),
	); err != nil {
		return "", fmt.Errorf("failed to record %s render: %w", format, err)
	}
	return id, nil
}

// Renders lists the charts rendered from a dataset, oldest first.
func (s *Store) Renders(ctx context.Context, datasetID string) ([]Render, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT render_id, dataset_id, format, path, created_unix_ms FROM renders
		 WHERE dataset_id = ? ORDER BY created_unix_ms, rowid`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list renders: %w", err)
	}
	defer rows.Close()

	var out []Render
	for rows.Next() {
		var (
			r         Render
			createdMs int64
		)
		if err := rows.Scan(&r.ID, &r.DatasetID, &r.Format, &r.Path, &createdMs); err != nil {
			return nil, fmt.Errorf("failed to scan render: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
