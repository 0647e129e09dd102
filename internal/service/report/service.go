// Package report runs the report-writing task: a sequential state machine
// that gathers context, plans an outline, writes each section and hands
// the assembled markdown to the citation formatter.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/paperdeck/researcher/internal/llm"
	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/jsonx"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
)

// ContextGatherer supplies the source context the report is grounded in.
type ContextGatherer interface {
	GatherContext(ctx context.Context, projectID int64, query string) (string, error)
}

// Formatter resolves citations in the finished markdown.
type Formatter interface {
	Format(ctx context.Context, markdown, bibPath string) (string, error)
}

// Service executes report-writing tasks.
type Service struct {
	db        *store.Store
	gatherer  ContextGatherer
	llm       llm.Client
	formatter Formatter
	layout    *paths.Layout
	log       logger.Logger
}

// New wires up the report service.
func New(db *store.Store, gatherer ContextGatherer, client llm.Client, formatter Formatter, layout *paths.Layout, log logger.Logger) *Service {
	return &Service{
		db:        db,
		gatherer:  gatherer,
		llm:       client,
		formatter: formatter,
		layout:    layout,
		log:       log.Named("report"),
	}
}

// Run executes one report-writing task to completion. Starting a task that
// is already mid-run is refused with ErrStateConflict; re-running a
// complete or failed task begins a fresh pass. On any error the task lands
// in "failed" with the cause in its status message, and artifacts persisted
// before the error (outline, markdown) survive.
func (s *Service) Run(ctx context.Context, taskID int64) error {
	task, err := s.db.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.TaskType != models.TaskTypeReport {
		return errs.Validationf("unknown task type %q", task.TaskType)
	}

	if err := s.db.StartTask(ctx, taskID); err != nil {
		return err
	}

	if err := s.execute(ctx, task); err != nil {
		s.log.Error("report task failed",
			logger.Int64("taskId", taskID),
			logger.Error(err),
		)
		if serr := s.db.SetTaskStatus(ctx, taskID, models.StatusFailed, err.Error()); serr != nil {
			s.log.Error("recording task failure failed", logger.Error(serr))
		}
		return err
	}
	return nil
}

func (s *Service) execute(ctx context.Context, task *models.Task) (err error) {
	// The run spans many model calls; a panic anywhere must become a
	// failed status, never a dead worker.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	// Status is already gathering_context, set by the start transition.
	contextStr, err := s.gatherer.GatherContext(ctx, task.ProjectID, task.UserPrompt)
	if err != nil {
		return fmt.Errorf("gather context: %w", err)
	}

	if err := s.db.SetTaskStatus(ctx, task.ID, models.StatusGeneratingOutline, ""); err != nil {
		return err
	}
	sections, err := s.generateOutline(ctx, task, contextStr)
	if err != nil {
		return err
	}

	body, err := s.writeSections(ctx, task, sections, contextStr)
	if err != nil {
		return err
	}

	if err := s.db.SetTaskStatus(ctx, task.ID, models.StatusAssemblingReport, ""); err != nil {
		return err
	}
	if err := s.assemble(ctx, task, body); err != nil {
		return err
	}

	return s.db.SetTaskStatus(ctx, task.ID, models.StatusComplete, "")
}

// generateOutline asks the chat model for the report plan and persists the
// outline JSON as soon as it parses. An unparseable reply and a parseable
// reply with no sections are distinct failures; the status message should
// tell the user which one happened.
func (s *Service) generateOutline(ctx context.Context, task *models.Task, contextStr string) ([]models.OutlineSection, error) {
	reply, err := s.llm.Chat(ctx, []llm.Message{{
		Role:    "user",
		Content: outlinePrompt(task.UserPrompt, contextStr),
	}})
	if err != nil {
		return nil, fmt.Errorf("generate outline: %w", err)
	}

	cleaned := jsonx.ObjectString(reply)
	var outline models.Outline
	if err := json.Unmarshal([]byte(cleaned), &outline); err != nil {
		return nil, fmt.Errorf("the language model failed to return a valid JSON object for the report outline: %w", err)
	}
	if len(outline.Sections) == 0 {
		return nil, fmt.Errorf("the outline JSON parsed but its 'sections' array is missing or empty")
	}

	if err := s.db.SetTaskOutline(ctx, task.ID, cleaned); err != nil {
		return nil, err
	}
	return outline.Sections, nil
}

// writeSections generates each section in outline order, giving the model
// a running view of the report: finished prose for earlier sections, a
// position marker at the current one and bare descriptions for the rest.
func (s *Service) writeSections(ctx context.Context, task *models.Task, sections []models.OutlineSection, contextStr string) (string, error) {
	written := make([]string, len(sections))
	var body []string
	total := len(sections)

	for i, section := range sections {
		status := models.WritingSectionStatus(i+1, total)
		if err := s.db.SetTaskStatus(ctx, task.ID, status, ""); err != nil {
			return "", err
		}

		reportContext := runningContext(sections, written, i)
		reply, err := s.llm.Chat(ctx, []llm.Message{{
			Role:    "user",
			Content: sectionPrompt(task.UserPrompt, reportContext, section.Title, section.Description, contextStr),
		}})
		if err != nil {
			return "", fmt.Errorf("write section %d of %d: %w", i+1, total, err)
		}

		written[i] = reply
		body = append(body, fmt.Sprintf("## %s\n%s\n", section.Title, reply))
	}
	return strings.Join(body, "\n"), nil
}

// runningContext renders the outline around position current: generated
// prose before it, the position marker at it, descriptions after it.
func runningContext(sections []models.OutlineSection, written []string, current int) string {
	var b strings.Builder
	for j, s := range sections {
		switch {
		case j == current:
			fmt.Fprintf(&b, "## %s\n--> YOU ARE HERE <--\nDescription: %s\n\n", s.Title, s.Description)
		case j < current:
			fmt.Fprintf(&b, "## %s\n%s\n\n", s.Title, written[j])
		default:
			fmt.Fprintf(&b, "## %s\nDescription: %s\n\n", s.Title, s.Description)
		}
	}
	return b.String()
}

// assemble persists the markdown body, writes the task's bibliography from
// every document's BibTeX entry and runs the citation formatter. The
// markdown is saved before the formatter runs, so a formatter failure
// still leaves a usable report body.
func (s *Service) assemble(ctx context.Context, task *models.Task, markdown string) error {
	if err := s.db.SetTaskMarkdown(ctx, task.ID, markdown); err != nil {
		return err
	}

	docs, err := s.db.ListDocuments(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	entries := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.BibEntry != "" {
			entries = append(entries, doc.BibEntry)
		}
	}

	if _, err := s.layout.EnsureProjectDir(task.ProjectID); err != nil {
		return err
	}
	bibPath := s.layout.BibliographyPath(task.ProjectID, task.ID)
	if err := os.WriteFile(bibPath, []byte(strings.Join(entries, "\n\n")), 0644); err != nil {
		return fmt.Errorf("write bibliography: %w", err)
	}

	final, err := s.formatter.Format(ctx, markdown, bibPath)
	if err != nil {
		return fmt.Errorf("format report: %w", err)
	}
	return s.db.SetTaskFinal(ctx, task.ID, final)
}
