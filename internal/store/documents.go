package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/pkg/errs"
)

// CreateDocument inserts a document and fills in its assigned ID.
func (s *Store) CreateDocument(ctx context.Context, d *models.Document) error {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents
			(project_id, filename, document_type, title, description, uploaded_at,
			 bib_key, bib_author, bib_year, bib_entry)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ProjectID, d.Filename, string(d.DocumentType), d.Title, d.Description,
		d.UploadedAt.Unix(), d.BibKey, d.BibAuthor, d.BibYear, d.BibEntry,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	d.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("document id: %w", err)
	}
	return nil
}

// GetDocument fetches one document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, filename, document_type, title, description,
		        uploaded_at, bib_key, bib_author, bib_year, bib_entry
		 FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("document %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return d, nil
}

// ListDocuments returns a project's documents in upload order.
func (s *Store) ListDocuments(ctx context.Context, projectID int64) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, filename, document_type, title, description,
		        uploaded_at, bib_key, bib_author, bib_year, bib_entry
		 FROM documents WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// BibKeyExists reports whether a citation key is already taken within the
// project. Ingestion uses this to pick a collision-free key.
func (s *Store) BibKeyExists(ctx context.Context, projectID int64, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM documents WHERE project_id = ? AND bib_key = ?`,
		projectID, key,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count bib key: %w", err)
	}
	return n > 0, nil
}

// DeleteDocument removes a document row; its figures cascade.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("document %d", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var d models.Document
	var docType string
	var uploaded int64
	err := row.Scan(&d.ID, &d.ProjectID, &d.Filename, &docType, &d.Title,
		&d.Description, &uploaded, &d.BibKey, &d.BibAuthor, &d.BibYear, &d.BibEntry)
	if err != nil {
		return nil, err
	}
	d.DocumentType = models.DocumentType(docType)
	d.UploadedAt = time.Unix(uploaded, 0).UTC()
	return &d, nil
}
