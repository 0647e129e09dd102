package ingest

import (
	"context"
	"fmt"

	"github.com/paperdeck/researcher/internal/llm"
	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/jsonx"
)

// metadata is the bibliographic record extracted by the chat model. The
// journal fields stay empty for generic documents and vice versa.
type metadata struct {
	Title        string `json:"title"`
	Author       string `json:"author"`
	Year         string `json:"year"`
	Journal      string `json:"journal"`
	Volume       string `json:"volume"`
	Pages        string `json:"pages"`
	HowPublished string `json:"howpublished"`
	Description  string `json:"description"`
}

const journalExample = `{
  "title": "Example Paper Title",
  "author": "First Author and Second Author",
  "year": "2023",
  "journal": "Journal of Examples",
  "volume": "10",
  "pages": "1-15",
  "description": "This paper describes an example methodology for testing systems."
}`

const genericExample = `{
  "title": "Title of the Report",
  "author": "Author Name",
  "year": "2024",
  "howpublished": "Example Publisher Inc.",
  "description": "This report outlines the key findings of a study on examples."
}`

func metadataPrompt(text string, docType models.DocumentType) string {
	fields := "author, title, year, howpublished"
	example := genericExample
	if docType == models.JournalArticle {
		fields = "author, title, journal, year, volume, pages"
		example = journalExample
	}
	return fmt.Sprintf(`From the document text provided below, extract the following bibliographic details: %s.
Also, write a concise, one-sentence summary of the document's content for the "description" field.

Return the information as a single, valid JSON object.
Here is an example of the desired format:
%s

If a value for a specific field cannot be found in the text, return an empty string "" for that field's value.

Document Text:
---
%s
---

Respond with ONLY the JSON object.`, fields, example, text)
}

// extractMetadata asks the chat model for the document's bibliographic
// fields. A reply that does not parse as the expected JSON is a hard
// failure; ingestion cannot continue without a title and citation data.
func (s *Service) extractMetadata(ctx context.Context, text string, docType models.DocumentType) (*metadata, error) {
	reply, err := s.llm.Chat(ctx, []llm.Message{{Role: "user", Content: metadataPrompt(text, docType)}})
	if err != nil {
		return nil, err
	}

	var m metadata
	if err := jsonx.ExtractObject(reply, &m); err != nil {
		return nil, errs.Upstream("metadata extraction", fmt.Errorf("parse reply: %w", err))
	}
	if m.Title == "" {
		m.Title = "Untitled"
	}
	return &m, nil
}
