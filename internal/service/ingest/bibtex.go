package ingest

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/paperdeck/researcher/internal/models"
)

// bibKey derives the citation key: first author token, year, first title
// word, e.g. "Smith2024_Optimization".
func bibKey(m *metadata) string {
	author := "Unknown"
	if fields := strings.Fields(m.Author); len(fields) > 0 {
		author = capitalize(fields[0])
	}
	title := "Title"
	if fields := strings.Fields(m.Title); len(fields) > 0 {
		title = capitalize(fields[0])
	}
	return fmt.Sprintf("%s%s_%s", author, m.Year, title)
}

// bibEntry renders the full BibTeX entry: @article for journal articles,
// @misc for everything else.
func bibEntry(key string, m *metadata, docType models.DocumentType) string {
	if docType == models.JournalArticle {
		return fmt.Sprintf("@article{%s,\n"+
			"    author  = \"%s\",\n"+
			"    title   = \"%s\",\n"+
			"    journal = \"%s\",\n"+
			"    year    = \"%s\",\n"+
			"    volume  = \"%s\",\n"+
			"    pages   = \"%s\"\n"+
			"}", key, m.Author, m.Title, m.Journal, m.Year, m.Volume, m.Pages)
	}
	return fmt.Sprintf("@misc{%s,\n"+
		"    author  = \"%s\",\n"+
		"    title   = \"%s\",\n"+
		"    year    = \"%s\",\n"+
		"    howpublished = \"%s\"\n"+
		"}", key, m.Author, m.Title, m.Year, m.HowPublished)
}

func capitalize(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
