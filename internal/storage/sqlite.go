package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/dagaz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS annotations (
	id       TEXT PRIMARY KEY,
	kind     TEXT NOT NULL,
	position INTEGER NOT NULL,
	payload  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_annotations_position ON annotations(position);
`

// SQLite implements Provider backed by a SQLite database. Each annotation is
// one row; position preserves insertion order, which is the render z-order.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Load returns all annotations in stored z-order. Rows whose payload no
// longer parses or validates are skipped.
func (s *SQLite) Load() ([]models.Annotation, error) {
	rows, err := s.conn.Query(`SELECT payload FROM annotations ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("storage: query annotations: %w", err)
	}
	defer rows.Close()

	var out []models.Annotation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var a models.Annotation
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			continue
		}
		if err := a.Validate(); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Save replaces the stored collection within a transaction.
func (s *SQLite) Save(annotations []models.Annotation) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM annotations`); err != nil {
		return fmt.Errorf("storage: clear annotations: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO annotations (id, kind, position, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range annotations {
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("storage: encode %s: %w", a.ID, err)
		}
		if _, err := stmt.Exec(a.ID, string(a.Kind), i, string(payload)); err != nil {
			return fmt.Errorf("storage: insert %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}
