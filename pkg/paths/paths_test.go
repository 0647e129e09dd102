package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_Paths(t *testing.T) {
	l := New("/data")

	assert.Equal(t, filepath.Join("/data", "7"), l.ProjectDir(7))
	assert.Equal(t, filepath.Join("/data", "7", "docs.index"), l.IndexPath(7))
	assert.Equal(t, filepath.Join("/data", "7", "mapping.json"), l.MappingPath(7))
	assert.Equal(t, filepath.Join("/data", "7", "figures"), l.FiguresDir(7))
	assert.Equal(t, filepath.Join("/data", "7", "figures", "doc_3_p2_fig1.png"), l.FigureImagePath(7, 3, 2, 1))
	assert.Equal(t, filepath.Join("/data", "7", "task_9_references.bib"), l.BibliographyPath(7, 9))
}

func TestLayout_SourcePathStripsDirectories(t *testing.T) {
	l := New("/data")
	assert.Equal(t, filepath.Join("/data", "7", "paper.pdf"), l.SourcePath(7, "../../etc/paper.pdf"))
}

func TestLayout_EnsureAndRemove(t *testing.T) {
	l := New(t.TempDir())

	dir, err := l.EnsureProjectDir(1)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.DirExists(t, l.FiguresDir(1))

	require.NoError(t, l.RemoveProject(1))
	assert.NoDirExists(t, dir)
}
