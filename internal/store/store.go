// Package store persists projects, documents, figures, conversations and
// tasks in SQLite. Ownership is modeled with ON DELETE CASCADE foreign
// keys, so deleting a project removes every row it owns; callers clean up
// the project's data directory themselves.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id    INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	filename      TEXT NOT NULL,
	document_type TEXT NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	uploaded_at   INTEGER NOT NULL,
	bib_key       TEXT NOT NULL,
	bib_author    TEXT NOT NULL DEFAULT '',
	bib_year      TEXT NOT NULL DEFAULT '',
	bib_entry     TEXT NOT NULL DEFAULT '',
	UNIQUE(project_id, bib_key)
);

CREATE TABLE IF NOT EXISTS figures (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id    INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	page_number    INTEGER NOT NULL,
	image_path     TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT 'Unknown',
	description    TEXT NOT NULL DEFAULT '',
	analysis       TEXT NOT NULL DEFAULT '',
	extracted_text TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS conversations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title      TEXT NOT NULL DEFAULT 'New Conversation',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id       INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	task_type        TEXT NOT NULL,
	user_prompt      TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'queued',
	status_message   TEXT NOT NULL DEFAULT '',
	outline_json     TEXT NOT NULL DEFAULT '',
	markdown_content TEXT NOT NULL DEFAULT '',
	final_content    TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);
CREATE INDEX IF NOT EXISTS idx_figures_document ON figures(document_id);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
`

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
