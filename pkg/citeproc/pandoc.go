// Package citeproc resolves citation keys in a markdown report against a
// BibTeX bibliography by shelling out to pandoc.
package citeproc

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its stdout. It exists so
// tests can run the formatter without pandoc installed.
type Runner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (string, error)
}

// Formatter converts markdown with @citekey references into LaTeX with a
// formatted reference list.
type Formatter struct {
	pandoc string
	runner Runner
}

// New creates a Formatter using the given pandoc binary.
func New(pandocPath string, runner Runner) *Formatter {
	if pandocPath == "" {
		pandocPath = "pandoc"
	}
	return &Formatter{pandoc: pandocPath, runner: runner}
}

// Format runs the markdown through pandoc with the bibliography at bibPath.
// A non-zero exit is a hard failure; there is no degraded output.
func (f *Formatter) Format(ctx context.Context, markdown, bibPath string) (string, error) {
	out, err := f.runner.Run(ctx, markdown, f.pandoc,
		"--from", "markdown",
		"--to", "latex",
		"--bibliography", bibPath,
		"--citeproc",
	)
	if err != nil {
		return "", fmt.Errorf("pandoc: %w", err)
	}
	return out, nil
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. Stderr is folded into the error on failure.
func (ExecRunner) Run(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
