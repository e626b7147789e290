// Copyright 2024 Customer Segmenter Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the registry holds no artifact with the requested name
var ErrNotFound = errors.New("artifact not found")

// IsTransient reports whether err came from a busy or locked database and the
// operation may succeed if repeated
func IsTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// Record is a stored artifact document
type Record struct {
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Format    Format    `json:"format"`
	Payload   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Document decodes the stored payload
func (r *Record) Document() (*Document, error) {
	return Decode(r.Payload, r.Format)
}

// Registry stores artifact documents in SQLite
type Registry struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenRegistry opens (and creates if needed) the artifact registry database
func OpenRegistry(dbPath string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	r := &Registry{db: db, logger: logger}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize registry schema: %w", err)
	}

	return r, nil
}

func (r *Registry) initSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS artifacts (
			name TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			format TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := r.db.Exec(query)
	return err
}

// Close closes the database connection
func (r *Registry) Close() error {
	return r.db.Close()
}

// Ping checks the database connection
func (r *Registry) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const upsertArtifact = `
	INSERT OR REPLACE INTO artifacts (name, kind, format, payload, created_at)
	VALUES (?, ?, ?, ?, ?)
`

// Put stores a record, replacing any artifact with the same name
func (r *Registry) Put(ctx context.Context, rec Record) error {
	return r.PutAll(ctx, rec)
}

// PutAll stores records in one transaction. Either all of them are written or none.
func (r *Registry) PutAll(ctx context.Context, recs ...Record) error {
	for _, rec := range recs {
		if rec.Name == "" {
			return errors.New("artifact name is required")
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, rec := range recs {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, upsertArtifact,
			rec.Name, string(rec.Kind), string(rec.Format), rec.Payload, rec.CreatedAt); err != nil {
			return fmt.Errorf("failed to store artifact %s: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit artifacts: %w", err)
	}

	for _, rec := range recs {
		r.logger.Info("Artifact stored",
			zap.String("name", rec.Name),
			zap.String("kind", string(rec.Kind)),
			zap.String("format", string(rec.Format)),
			zap.Int("bytes", len(rec.Payload)))
	}
	return nil
}

// Get returns the record with the given name
func (r *Registry) Get(ctx context.Context, name string) (*Record, error) {
	query := `SELECT name, kind, format, payload, created_at FROM artifacts WHERE name = ?`

	var rec Record
	var kind, format string
	err := r.db.QueryRowContext(ctx, query, name).Scan(&rec.Name, &kind, &format, &rec.Payload, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact %s: %w", name, err)
	}

	rec.Kind = Kind(kind)
	rec.Format, err = ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records ordered by name, without payloads
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, kind, format, created_at FROM artifacts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var kind, format string
		if err := rows.Scan(&rec.Name, &kind, &format, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		rec.Kind = Kind(kind)
		rec.Format = Format(format)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}
