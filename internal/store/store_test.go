package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/pkg/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProjects_CRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "climate")
	require.NoError(t, err)
	assert.Positive(t, p.ID)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "climate", got.Name)

	all, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestProjects_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateProject(ctx, "dup")
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, "dup")
	assert.ErrorIs(t, err, errs.ErrStateConflict)
}

func TestProjects_EmptyNameRejected(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateProject(context.Background(), "   ")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestDocuments_CreateAndBibKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "proj")
	require.NoError(t, err)

	doc := &models.Document{
		ProjectID:    p.ID,
		Filename:     "paper.pdf",
		DocumentType: models.JournalArticle,
		Title:        "A Paper",
		BibKey:       "Smith2024_A",
	}
	require.NoError(t, s.CreateDocument(ctx, doc))
	assert.Positive(t, doc.ID)

	taken, err := s.BibKeyExists(ctx, p.ID, "Smith2024_A")
	require.NoError(t, err)
	assert.True(t, taken)

	free, err := s.BibKeyExists(ctx, p.ID, "Smith2024_A2")
	require.NoError(t, err)
	assert.False(t, free)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JournalArticle, got.DocumentType)
	assert.Equal(t, "A Paper", got.Title)
}

func TestProjectDelete_CascadesToOwnedRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "proj")
	require.NoError(t, err)

	doc := &models.Document{ProjectID: p.ID, Filename: "a.pdf", DocumentType: models.Generic, Title: "A", BibKey: "K"}
	require.NoError(t, s.CreateDocument(ctx, doc))
	require.NoError(t, s.CreateFigure(ctx, &models.Figure{DocumentID: doc.ID, PageNumber: 1, ImagePath: "figures/f.png", Name: "Fig"}))

	conv, err := s.CreateConversation(ctx, p.ID, "")
	require.NoError(t, err)
	require.NoError(t, s.AddMessage(ctx, &models.Message{ConversationID: conv.ID, Role: "user", Content: "hi"}))

	task := &models.Task{ProjectID: p.ID, TaskType: models.TaskTypeReport, UserPrompt: "write"}
	require.NoError(t, s.CreateTask(ctx, task))

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err = s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	figs, err := s.ListFiguresByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, figs)
}

func TestDocumentDelete_CascadesToFigures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "proj")
	require.NoError(t, err)
	doc := &models.Document{ProjectID: p.ID, Filename: "a.pdf", DocumentType: models.Generic, Title: "A", BibKey: "K"}
	require.NoError(t, s.CreateDocument(ctx, doc))
	require.NoError(t, s.CreateFigure(ctx, &models.Figure{DocumentID: doc.ID, PageNumber: 2, ImagePath: "figures/f.png"}))

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))

	figs, err := s.ListFiguresByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, figs)
}

func TestFigures_ListByProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "proj")
	require.NoError(t, err)
	doc1 := &models.Document{ProjectID: p.ID, Filename: "a.pdf", DocumentType: models.Generic, Title: "A", BibKey: "KA"}
	doc2 := &models.Document{ProjectID: p.ID, Filename: "b.pdf", DocumentType: models.Generic, Title: "B", BibKey: "KB"}
	require.NoError(t, s.CreateDocument(ctx, doc1))
	require.NoError(t, s.CreateDocument(ctx, doc2))

	require.NoError(t, s.CreateFigure(ctx, &models.Figure{DocumentID: doc1.ID, PageNumber: 1, ImagePath: "figures/1.png"}))
	require.NoError(t, s.CreateFigure(ctx, &models.Figure{DocumentID: doc2.ID, PageNumber: 3, ImagePath: "figures/2.png"}))

	figs, err := s.ListFiguresByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, figs, 2)
}

func TestConversations_Messages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "proj")
	require.NoError(t, err)
	conv, err := s.CreateConversation(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "New Conversation", conv.Title)

	require.NoError(t, s.AddMessage(ctx, &models.Message{ConversationID: conv.ID, Role: "user", Content: "question"}))
	require.NoError(t, s.AddMessage(ctx, &models.Message{ConversationID: conv.ID, Role: "assistant", Content: "answer"}))

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
	msgs, err = s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTasks_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "proj")
	require.NoError(t, err)
	task := &models.Task{ProjectID: p.ID, TaskType: models.TaskTypeReport, UserPrompt: "write a survey"}
	require.NoError(t, s.CreateTask(ctx, task))
	assert.Equal(t, models.StatusQueued, task.Status)

	require.NoError(t, s.SetTaskOutline(ctx, task.ID, `{"sections":[]}`))
	require.NoError(t, s.SetTaskMarkdown(ctx, task.ID, "## Intro\nbody"))
	require.NoError(t, s.SetTaskFinal(ctx, task.ID, `\section{Intro}`))
	require.NoError(t, s.SetTaskStatus(ctx, task.ID, models.StatusComplete, ""))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, got.Status)
	assert.Equal(t, `{"sections":[]}`, got.OutlineJSON)
	assert.Equal(t, "## Intro\nbody", got.MarkdownContent)
	assert.Equal(t, `\section{Intro}`, got.FinalContent)
}

func TestTasks_StartRefusesRunning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "proj")
	require.NoError(t, err)
	task := &models.Task{ProjectID: p.ID, TaskType: models.TaskTypeReport, UserPrompt: "go"}
	require.NoError(t, s.CreateTask(ctx, task))

	// First start wins and moves the task to its initial running status.
	require.NoError(t, s.StartTask(ctx, task.ID))
	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusGatheringContext, got.Status)

	// A second start while running is refused.
	err = s.StartTask(ctx, task.ID)
	assert.ErrorIs(t, err, errs.ErrStateConflict)

	// Section-writing statuses also count as running.
	require.NoError(t, s.SetTaskStatus(ctx, task.ID, models.WritingSectionStatus(2, 5), ""))
	err = s.StartTask(ctx, task.ID)
	assert.ErrorIs(t, err, errs.ErrStateConflict)

	// Completed and failed tasks may be restarted.
	require.NoError(t, s.SetTaskStatus(ctx, task.ID, models.StatusFailed, "boom"))
	require.NoError(t, s.StartTask(ctx, task.ID))

	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusGatheringContext, got.Status)
	assert.Empty(t, got.StatusMessage)
}

func TestTasks_StartMissingTask(t *testing.T) {
	s := newTestStore(t)
	err := s.StartTask(context.Background(), 999)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
