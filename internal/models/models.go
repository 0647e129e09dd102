package models

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType classifies a document for metadata extraction.
type DocumentType string

const (
	JournalArticle DocumentType = "journal_article"
	Generic        DocumentType = "generic"
)

// Project is the tenancy root; it owns documents, conversations and tasks.
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Document is one ingested source file within a project.
type Document struct {
	ID           int64        `json:"id"`
	ProjectID    int64        `json:"projectId"`
	Filename     string       `json:"filename"`
	DocumentType DocumentType `json:"documentType"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	UploadedAt   time.Time    `json:"uploadedAt"`

	// Bibliographic fields derived at ingestion time. BibKey is unique
	// within a project and doubles as the citation key in reports.
	BibKey    string `json:"bibKey"`
	BibAuthor string `json:"bibAuthor"`
	BibYear   string `json:"bibYear"`
	BibEntry  string `json:"bibEntry"`
}

// Figure is an extracted and analyzed figure region of a document page.
type Figure struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"documentId"`
	PageNumber int    `json:"pageNumber"`
	ImagePath  string `json:"imagePath"`

	// Fields produced by the multimodal analysis call.
	Name          string `json:"name"`
	Description   string `json:"description"`
	Analysis      string `json:"analysis"`
	ExtractedText string `json:"extractedText"`
}

// Conversation is a chat thread scoped to a project.
type Conversation struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"projectId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a single turn in a conversation.
type Message struct {
	ID             int64     `json:"-"`
	ConversationID int64     `json:"-"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// Task statuses. Section-writing statuses are parameterized; use
// WritingSectionStatus to build them and StatusInProgress to test for an
// active run.
const (
	StatusQueued            = "queued"
	StatusGatheringContext  = "gathering_context"
	StatusGeneratingOutline = "generating_outline"
	StatusAssemblingReport  = "assembling_report"
	StatusComplete          = "complete"
	StatusFailed            = "failed"
)

// WritingSectionStatus returns the status token for section i of n (1-based).
func WritingSectionStatus(i, n int) string {
	return fmt.Sprintf("writing_section_%d_of_%d", i, n)
}

// StatusInProgress reports whether status denotes a run that is currently
// executing. Starting a task in such a state is refused.
func StatusInProgress(status string) bool {
	switch status {
	case StatusGatheringContext, StatusGeneratingOutline, StatusAssemblingReport:
		return true
	}
	return strings.HasPrefix(status, "writing_section_")
}

// Task is one run of the report-writing pipeline.
type Task struct {
	ID            int64  `json:"id"`
	ProjectID     int64  `json:"projectId"`
	TaskType      string `json:"taskType"`
	UserPrompt    string `json:"userPrompt"`
	Status        string `json:"status"`
	StatusMessage string `json:"statusMessage,omitempty"`

	// Artifacts, filled in as the run progresses. Empty means not yet
	// produced; earlier artifacts survive a later failure.
	OutlineJSON     string `json:"-"`
	MarkdownContent string `json:"-"`
	FinalContent    string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// TaskTypeReport is the only task type currently produced.
const TaskTypeReport = "report_writing"

// Outline is the structured report plan generated before any prose.
type Outline struct {
	Sections []OutlineSection `json:"sections"`
}

// OutlineSection is one planned report section.
type OutlineSection struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
