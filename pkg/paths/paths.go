// Package paths defines the on-disk layout of per-project data.
//
// Everything a project owns lives under <root>/<projectID>/: the vector
// index file, the position mapping, uploaded source documents and rendered
// figure images. Deleting that one directory removes every artifact.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Layout resolves project-scoped file paths under a single data root.
type Layout struct {
	root string
}

// New creates a Layout rooted at dir.
func New(dir string) *Layout {
	return &Layout{root: dir}
}

// ProjectDir returns the project's data directory.
func (l *Layout) ProjectDir(projectID int64) string {
	return filepath.Join(l.root, strconv.FormatInt(projectID, 10))
}

// EnsureProjectDir creates the project directory (and figures subdir) if
// needed and returns it.
func (l *Layout) EnsureProjectDir(projectID int64) (string, error) {
	dir := l.ProjectDir(projectID)
	if err := os.MkdirAll(filepath.Join(dir, "figures"), 0755); err != nil {
		return "", fmt.Errorf("create project dir: %w", err)
	}
	return dir, nil
}

// IndexPath returns the vector index file path.
func (l *Layout) IndexPath(projectID int64) string {
	return filepath.Join(l.ProjectDir(projectID), "docs.index")
}

// MappingPath returns the position-to-source mapping file path.
func (l *Layout) MappingPath(projectID int64) string {
	return filepath.Join(l.ProjectDir(projectID), "mapping.json")
}

// FiguresDir returns the directory for rendered figure images.
func (l *Layout) FiguresDir(projectID int64) string {
	return filepath.Join(l.ProjectDir(projectID), "figures")
}

// FigureImagePath returns the path for a rendered figure image.
func (l *Layout) FigureImagePath(projectID, documentID int64, page, idx int) string {
	name := fmt.Sprintf("doc_%d_p%d_fig%d.png", documentID, page, idx)
	return filepath.Join(l.FiguresDir(projectID), name)
}

// SourcePath returns the stored location of an uploaded document.
func (l *Layout) SourcePath(projectID int64, filename string) string {
	return filepath.Join(l.ProjectDir(projectID), filepath.Base(filename))
}

// BibliographyPath returns the path of a task's temporary bibliography.
func (l *Layout) BibliographyPath(projectID, taskID int64) string {
	return filepath.Join(l.ProjectDir(projectID), fmt.Sprintf("task_%d_references.bib", taskID))
}

// RemoveProject deletes the whole project directory.
func (l *Layout) RemoveProject(projectID int64) error {
	return os.RemoveAll(l.ProjectDir(projectID))
}
