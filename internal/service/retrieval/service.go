// Package retrieval assembles grounded context for the report writer and
// answers ad-hoc questions over a project's indexed documents.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paperdeck/researcher/internal/llm"
	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/internal/vectorindex"
	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/logger"
)

// noDocumentsAnswer is returned instead of an error when a question is
// asked before any document has been indexed.
const noDocumentsAnswer = "This project has no documents to search."

// Service performs similarity search and context assembly.
type Service struct {
	db      *store.Store
	vectors *vectorindex.Store
	llm     llm.Client
	topK    int
	log     logger.Logger
}

// New wires up the retrieval service. topK bounds both the text and the
// figure search independently.
func New(db *store.Store, vectors *vectorindex.Store, client llm.Client, topK int, log logger.Logger) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{
		db:      db,
		vectors: vectors,
		llm:     client,
		topK:    topK,
		log:     log.Named("retrieval"),
	}
}

// contextItem is one deduplicated piece of gathered context.
type contextItem struct {
	docID   int64
	content string
}

// GatherContext embeds the query once and searches the persistent text
// index plus an ephemeral index over the project's figure analyses. Hits
// are deduplicated and rendered into source blocks carrying the filename
// and citation key the downstream prompts cite by.
//
// A project without a text index yields ErrNotFound: the caller should add
// documents first.
func (s *Service) GatherContext(ctx context.Context, projectID int64, query string) (string, error) {
	queryVec, err := s.llm.Embed(ctx, query)
	if err != nil {
		return "", err
	}

	textResults, err := s.vectors.Search(projectID, queryVec, s.topK)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", errs.NotFoundf("project %d has no text index; add documents first", projectID)
		}
		return "", err
	}

	var items []contextItem
	seen := make(map[contextItem]bool)
	add := func(it contextItem) {
		if !seen[it] {
			seen[it] = true
			items = append(items, it)
		}
	}

	for _, r := range textResults {
		add(contextItem{
			docID:   r.Ref.DocID,
			content: "Relevant Text Snippet:\n" + r.Ref.Text,
		})
	}

	figResults, err := s.searchFigures(ctx, projectID, queryVec)
	if err != nil {
		return "", err
	}
	for _, r := range figResults {
		add(contextItem{
			docID:   r.Ref.DocID,
			content: "Relevant Figure Analysis:\n" + r.Ref.Text,
		})
	}

	docs, err := s.db.ListDocuments(ctx, projectID)
	if err != nil {
		return "", err
	}
	byID := make(map[int64]*models.Document, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}

	var b strings.Builder
	for _, it := range items {
		doc := byID[it.docID]
		if doc == nil {
			continue
		}
		b.WriteString("--- SOURCE START ---\n")
		fmt.Fprintf(&b, "Document Filename: %s\n", doc.Filename)
		fmt.Fprintf(&b, "Citation Key: %s\n\n", doc.BibKey)
		b.WriteString(it.content)
		b.WriteString("\n--- SOURCE END ---\n\n")
	}
	return b.String(), nil
}

// searchFigures builds a throwaway in-memory index over the project's
// figure analyses and searches it. Figures are few per project, so the
// index is cheaper to rebuild per query than to keep consistent on disk.
func (s *Service) searchFigures(ctx context.Context, projectID int64, queryVec []float32) ([]vectorindex.Result, error) {
	figs, err := s.db.ListFiguresByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(figs) == 0 {
		return nil, nil
	}

	idx := vectorindex.NewFlat()
	refs := make([]vectorindex.SourceRef, 0, len(figs))
	for _, fig := range figs {
		text := fmt.Sprintf("Figure named '%s' on page %d. Description: %s. Analysis: %s",
			fig.Name, fig.PageNumber, fig.Description, fig.Analysis)
		vec, err := s.llm.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := idx.Append(vec); err != nil {
			return nil, fmt.Errorf("figure index: %w", err)
		}
		refs = append(refs, vectorindex.SourceRef{DocID: fig.DocumentID, Text: text})
	}

	matches := idx.Search(queryVec, s.topK)
	results := make([]vectorindex.Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, vectorindex.Result{Ref: refs[m.Position], Distance: m.Distance})
	}
	return results, nil
}

const ragPromptFormat = `Based on the following context, please provide a comprehensive answer to the user's question.
If the context does not contain the answer, please advise the user, but still answer the question to the best of your knowledge.
Context:
---
%s
---
Question: %s`

// Answer runs the question-answering flow: embed the question, fetch the
// nearest text chunks and ask the chat model to answer from them. A
// project without any indexed documents gets a fixed advisory answer
// rather than an error.
func (s *Service) Answer(ctx context.Context, projectID int64, question string) (string, error) {
	queryVec, err := s.llm.Embed(ctx, question)
	if err != nil {
		return "", err
	}

	results, err := s.vectors.Search(projectID, queryVec, s.topK)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return noDocumentsAnswer, nil
		}
		return "", err
	}

	snippets := make([]string, len(results))
	for i, r := range results {
		snippets[i] = r.Ref.Text
	}
	prompt := fmt.Sprintf(ragPromptFormat, strings.Join(snippets, "\n---\n"), question)

	return s.llm.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
}
