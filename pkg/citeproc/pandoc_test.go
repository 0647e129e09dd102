package citeproc

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdin string
	name  string
	args  []string

	out string
	err error
}

func (r *fakeRunner) Run(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	r.stdin, r.name, r.args = stdin, name, args
	return r.out, r.err
}

func TestFormat_InvokesPandocWithCiteproc(t *testing.T) {
	runner := &fakeRunner{out: "\\section{Intro}\n\nSmith (2024) says so."}
	f := New("", runner)

	got, err := f.Format(context.Background(), "# Intro\n\n[@Smith2024] says so.", "/data/1/task_3_references.bib")
	require.NoError(t, err)
	assert.Equal(t, runner.out, got)

	assert.Equal(t, "pandoc", runner.name)
	assert.Equal(t, "# Intro\n\n[@Smith2024] says so.", runner.stdin)
	assert.Equal(t, []string{
		"--from", "markdown",
		"--to", "latex",
		"--bibliography", "/data/1/task_3_references.bib",
		"--citeproc",
	}, runner.args)
}

func TestFormat_CustomBinaryPath(t *testing.T) {
	runner := &fakeRunner{}
	f := New("/opt/pandoc/bin/pandoc", runner)

	_, err := f.Format(context.Background(), "body", "refs.bib")
	require.NoError(t, err)
	assert.Equal(t, "/opt/pandoc/bin/pandoc", runner.name)
}

func TestFormat_RunnerFailure(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("exit status 1: citeproc: bad bibliography")}
	f := New("", runner)

	_, err := f.Format(context.Background(), "body", "refs.bib")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pandoc")
	assert.Contains(t, err.Error(), "bad bibliography")
}
