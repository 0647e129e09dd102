package retrieval

import (
	"context"
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdeck/researcher/internal/llm"
	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/internal/vectorindex"
	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
)

// fakeLLM embeds every text to the same vector, so search ranking reduces
// to insertion order, and records the last chat prompt.
type fakeLLM struct {
	chatReply  string
	lastPrompt string
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.lastPrompt = messages[len(messages)-1].Content
	return f.chatReply, nil
}

func (f *fakeLLM) AnalyzeImage(ctx context.Context, prompt string, img image.Image) (string, error) {
	return "", fmt.Errorf("not used")
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type fixture struct {
	svc     *Service
	db      *store.Store
	vectors *vectorindex.Store
	llm     *fakeLLM
	project int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p, err := db.CreateProject(context.Background(), "proj")
	require.NoError(t, err)

	vectors := vectorindex.NewStore(paths.New(t.TempDir()), logger.Nop())
	client := &fakeLLM{chatReply: "an answer"}
	return &fixture{
		svc:     New(db, vectors, client, 5, logger.Nop()),
		db:      db,
		vectors: vectors,
		llm:     client,
		project: p.ID,
	}
}

func (fx *fixture) addDocument(t *testing.T, filename, bibKey string, chunks ...string) int64 {
	t.Helper()
	ctx := context.Background()
	doc := &models.Document{
		ProjectID: fx.project, Filename: filename,
		DocumentType: models.Generic, Title: filename, BibKey: bibKey,
	}
	require.NoError(t, fx.db.CreateDocument(ctx, doc))

	refs := make([]vectorindex.SourceRef, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		refs[i] = vectorindex.SourceRef{DocID: doc.ID, Text: c}
		vecs[i] = []float32{1, 0}
	}
	require.NoError(t, fx.vectors.Add(fx.project, refs, vecs))
	return doc.ID
}

func TestGatherContext_RendersSourceBlocks(t *testing.T) {
	fx := newFixture(t)
	fx.addDocument(t, "paper.pdf", "Smith2024_Widgets", "widgets are efficient")

	got, err := fx.svc.GatherContext(context.Background(), fx.project, "widget efficiency")
	require.NoError(t, err)

	assert.Contains(t, got, "--- SOURCE START ---")
	assert.Contains(t, got, "Document Filename: paper.pdf")
	assert.Contains(t, got, "Citation Key: Smith2024_Widgets")
	assert.Contains(t, got, "Relevant Text Snippet:\nwidgets are efficient")
	assert.Contains(t, got, "--- SOURCE END ---")
}

func TestGatherContext_NoIndex(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.GatherContext(context.Background(), fx.project, "anything")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGatherContext_DeduplicatesHits(t *testing.T) {
	fx := newFixture(t)
	// The same chunk indexed twice must appear once in the output.
	fx.addDocument(t, "paper.pdf", "Key", "repeated chunk", "repeated chunk")

	got, err := fx.svc.GatherContext(context.Background(), fx.project, "q")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(got, "repeated chunk"))
}

func TestGatherContext_IncludesFigureAnalyses(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	docID := fx.addDocument(t, "paper.pdf", "Smith2024_Widgets", "some text")

	require.NoError(t, fx.db.CreateFigure(ctx, &models.Figure{
		DocumentID: docID, PageNumber: 3, ImagePath: "figures/f.png",
		Name: "Figure 2", Description: "A bar chart.", Analysis: "Throughput doubles.",
	}))

	got, err := fx.svc.GatherContext(ctx, fx.project, "throughput")
	require.NoError(t, err)

	assert.Contains(t, got, "Relevant Figure Analysis:\n")
	assert.Contains(t, got, "Figure named 'Figure 2' on page 3. Description: A bar chart. Analysis: Throughput doubles.")
	// Figure hits cite the owning document.
	assert.Equal(t, 2, strings.Count(got, "Citation Key: Smith2024_Widgets"))
}

func TestGatherContext_SkipsHitsForDeletedDocuments(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	docID := fx.addDocument(t, "paper.pdf", "Key", "orphaned chunk")

	// Simulate a stale index entry: the document row is gone but the
	// index still holds its chunk.
	require.NoError(t, fx.db.DeleteDocument(ctx, docID))

	got, err := fx.svc.GatherContext(ctx, fx.project, "q")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAnswer_UsesRetrievedContext(t *testing.T) {
	fx := newFixture(t)
	fx.addDocument(t, "paper.pdf", "Key", "the sky appears blue due to Rayleigh scattering")
	fx.llm.chatReply = "Because of Rayleigh scattering."

	got, err := fx.svc.Answer(context.Background(), fx.project, "Why is the sky blue?")
	require.NoError(t, err)
	assert.Equal(t, "Because of Rayleigh scattering.", got)

	assert.Contains(t, fx.llm.lastPrompt, "the sky appears blue due to Rayleigh scattering")
	assert.Contains(t, fx.llm.lastPrompt, "Question: Why is the sky blue?")
}

func TestAnswer_NoDocuments(t *testing.T) {
	fx := newFixture(t)
	got, err := fx.svc.Answer(context.Background(), fx.project, "anything?")
	require.NoError(t, err)
	assert.Equal(t, "This project has no documents to search.", got)
}
