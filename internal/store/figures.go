package store

import (
	"context"
	"fmt"

	"github.com/paperdeck/researcher/internal/models"
)

// CreateFigure inserts one analyzed figure and fills in its assigned ID.
func (s *Store) CreateFigure(ctx context.Context, f *models.Figure) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO figures
			(document_id, page_number, image_path, name, description, analysis, extracted_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.DocumentID, f.PageNumber, f.ImagePath, f.Name, f.Description,
		f.Analysis, f.ExtractedText,
	)
	if err != nil {
		return fmt.Errorf("insert figure: %w", err)
	}
	f.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("figure id: %w", err)
	}
	return nil
}

// ListFiguresByDocument returns a document's figures in page order.
func (s *Store) ListFiguresByDocument(ctx context.Context, documentID int64) ([]models.Figure, error) {
	return s.listFigures(ctx,
		`SELECT id, document_id, page_number, image_path, name, description,
		        analysis, extracted_text
		 FROM figures WHERE document_id = ? ORDER BY page_number, id`, documentID)
}

// ListFiguresByProject returns every figure across a project's documents.
// Retrieval uses this set to build the per-query figure index.
func (s *Store) ListFiguresByProject(ctx context.Context, projectID int64) ([]models.Figure, error) {
	return s.listFigures(ctx,
		`SELECT f.id, f.document_id, f.page_number, f.image_path, f.name,
		        f.description, f.analysis, f.extracted_text
		 FROM figures f
		 JOIN documents d ON d.id = f.document_id
		 WHERE d.project_id = ?
		 ORDER BY f.document_id, f.page_number, f.id`, projectID)
}

func (s *Store) listFigures(ctx context.Context, query string, arg int64) ([]models.Figure, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("select figures: %w", err)
	}
	defer rows.Close()

	var out []models.Figure
	for rows.Next() {
		var f models.Figure
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.PageNumber, &f.ImagePath,
			&f.Name, &f.Description, &f.Analysis, &f.ExtractedText); err != nil {
			return nil, fmt.Errorf("scan figure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
