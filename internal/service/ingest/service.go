// Package ingest implements the document ingestion pipeline: split, extract
// metadata, derive citation data, detect figures and index embeddings.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/paperdeck/researcher/internal/chunker"
	"github.com/paperdeck/researcher/internal/llm"
	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/internal/vectorindex"
	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
)

// embedWorkers bounds concurrent embedding calls against the model backend.
const embedWorkers = 4

// FigureExtractor produces analyzed figure records from a PDF.
type FigureExtractor interface {
	Extract(ctx context.Context, projectID, documentID int64, pdfPath string) ([]models.Figure, error)
}

// Service runs the ingestion pipeline.
type Service struct {
	db      *store.Store
	vectors *vectorindex.Store
	llm     llm.Client
	chunks  *chunker.Chunker
	figures FigureExtractor
	layout  *paths.Layout
	log     logger.Logger
}

// New wires up the ingestion service.
func New(db *store.Store, vectors *vectorindex.Store, client llm.Client, chunks *chunker.Chunker, figures FigureExtractor, layout *paths.Layout, log logger.Logger) *Service {
	return &Service{
		db:      db,
		vectors: vectors,
		llm:     client,
		chunks:  chunks,
		figures: figures,
		layout:  layout,
		log:     log.Named("ingest"),
	}
}

// Process ingests the already-stored source file for a project. The
// document row is persisted before figures and embeddings run, so a later
// embedding failure leaves the document visible, matching the index's
// rebuild-from-documents recovery path. Failing before the row exists
// removes the uploaded file; nothing would ever reference it again.
func (s *Service) Process(ctx context.Context, projectID int64, filename string, docType models.DocumentType) (*models.Document, error) {
	path := s.layout.SourcePath(projectID, filename)

	persisted := false
	defer func() {
		if persisted {
			return
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("removing rejected upload failed",
				logger.String("path", path),
				logger.Error(err),
			)
		}
	}()

	text, err := extractText(path)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	chunks := s.chunks.Split(text)
	if len(chunks) == 0 {
		return nil, errs.Validationf("could not read or process the document")
	}

	meta, err := s.extractMetadata(ctx, strings.Join(chunks, " "), docType)
	if err != nil {
		return nil, err
	}

	key, err := s.uniqueBibKey(ctx, projectID, bibKey(meta))
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ProjectID:    projectID,
		Filename:     filepath.Base(filename),
		DocumentType: docType,
		Title:        meta.Title,
		Description:  meta.Description,
		BibKey:       key,
		BibAuthor:    meta.Author,
		BibYear:      meta.Year,
		BibEntry:     bibEntry(key, meta, docType),
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	persisted = true

	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		s.extractFigures(ctx, projectID, doc.ID, path)
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	refs := make([]vectorindex.SourceRef, len(chunks))
	for i, chunk := range chunks {
		refs[i] = vectorindex.SourceRef{DocID: doc.ID, Text: chunk}
	}
	if err := s.vectors.Add(projectID, refs, vectors); err != nil {
		return nil, fmt.Errorf("index document: %w", err)
	}

	s.log.Info("document ingested",
		logger.Int64("projectId", projectID),
		logger.Int64("documentId", doc.ID),
		logger.String("bibKey", doc.BibKey),
		logger.Int("chunks", len(chunks)),
	)
	return doc, nil
}

// uniqueBibKey appends a numeric suffix until the key is free within the
// project, so two papers by the same author and year can coexist.
func (s *Service) uniqueBibKey(ctx context.Context, projectID int64, key string) (string, error) {
	candidate := key
	for i := 2; ; i++ {
		taken, err := s.db.BibKeyExists(ctx, projectID, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", key, i)
	}
}

// extractFigures runs figure detection and persists the results. Failures
// are logged and swallowed; figures never block ingestion.
func (s *Service) extractFigures(ctx context.Context, projectID, documentID int64, pdfPath string) {
	figs, err := s.figures.Extract(ctx, projectID, documentID, pdfPath)
	if err != nil {
		s.log.Warn("figure extraction failed",
			logger.Int64("documentId", documentID),
			logger.Error(err),
		)
		return
	}
	for i := range figs {
		if err := s.db.CreateFigure(ctx, &figs[i]); err != nil {
			s.log.Warn("persisting figure failed",
				logger.Int64("documentId", documentID),
				logger.Error(err),
			)
		}
	}
}

// embedChunks embeds every chunk, preserving order, with bounded
// concurrency. Any single failure fails the whole batch.
func (s *Service) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			vec, err := s.llm.Embed(gctx, chunk)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Delete removes a document: its row (figures cascade with it), its source
// file and figure images on disk, and finally the project index, which is
// rebuilt from the remaining documents.
func (s *Service) Delete(ctx context.Context, documentID int64) error {
	doc, err := s.db.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	figs, err := s.db.ListFiguresByDocument(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.db.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	if err := os.Remove(s.layout.SourcePath(doc.ProjectID, doc.Filename)); err != nil && !os.IsNotExist(err) {
		s.log.Warn("removing source file failed", logger.Error(err))
	}
	for _, fig := range figs {
		p := filepath.Join(s.layout.ProjectDir(doc.ProjectID), fig.ImagePath)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.log.Warn("removing figure image failed", logger.Error(err))
		}
	}

	return s.RebuildIndex(ctx, doc.ProjectID)
}

// RebuildIndex re-chunks every remaining document of the project and
// reconstructs the vector index from scratch. Documents whose source file
// has gone missing are skipped with a warning.
func (s *Service) RebuildIndex(ctx context.Context, projectID int64) error {
	docs, err := s.db.ListDocuments(ctx, projectID)
	if err != nil {
		return err
	}

	rebuild := make([]vectorindex.RebuildDoc, 0, len(docs))
	for _, doc := range docs {
		path := s.layout.SourcePath(projectID, doc.Filename)
		text, err := extractText(path)
		if err != nil {
			s.log.Warn("skipping document during index rebuild",
				logger.Int64("documentId", doc.ID),
				logger.Error(err),
			)
			continue
		}
		chunks := s.chunks.Split(text)
		if len(chunks) == 0 {
			continue
		}
		rebuild = append(rebuild, vectorindex.RebuildDoc{DocID: doc.ID, Chunks: chunks})
	}

	return s.vectors.Rebuild(ctx, projectID, rebuild, s.llm.Embed)
}
