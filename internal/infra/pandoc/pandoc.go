// Package pandoc adapts the external pandoc binary as the document converter.
// The binary is a black box: it gets Markdown on stdin plus an output path and
// either produces a DOCX file there or fails.
package pandoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrEmptyVersion signals that pandoc produced no recognizable version output.
var ErrEmptyVersion = errors.New("pandoc version output is empty")

// Runner abstracts subprocess execution so the engine can be tested without a
// pandoc binary.
type Runner interface {
	Run(ctx context.Context, stdin, name string, args ...string) (stdout string, stderr string, err error)
}

// ExecRunner implements Runner using os/exec. Context cancellation kills the
// process.
type ExecRunner struct{}

func (r *ExecRunner) Run(ctx context.Context, stdin, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Engine invokes pandoc for conversion and version probes.
type Engine struct {
	Path   string
	Runner Runner
}

// New returns an Engine using the given pandoc binary path and a real runner.
func New(path string) *Engine {
	return &Engine{Path: path, Runner: &ExecRunner{}}
}

// Render converts markdown into a DOCX file at outputPath. referencePath, when
// non-empty, is passed as the pandoc style reference. The engine's diagnostic
// (stderr) is included in the returned error.
func (e *Engine) Render(ctx context.Context, markdown, outputPath, referencePath string) error {
	args := []string{"--quiet", "-f", "markdown", "-t", "docx", "-o", outputPath}
	if referencePath != "" {
		args = append(args, "--reference-doc", referencePath)
	}

	_, stderr, err := e.Runner.Run(ctx, markdown, e.Path, args...)
	if err != nil {
		if stderr != "" {
			return fmt.Errorf("pandoc: %s: %w", strings.TrimSpace(stderr), err)
		}
		return fmt.Errorf("pandoc: %w", err)
	}
	return nil
}

// Version reports the pandoc version for the health probe, parsed from the
// first line of `pandoc --version` ("pandoc 3.1.11" -> "3.1.11").
func (e *Engine) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := e.Runner.Run(ctx, "", e.Path, "--version")
	if err != nil {
		if stderr != "" {
			return "", fmt.Errorf("pandoc: %s: %w", strings.TrimSpace(stderr), err)
		}
		return "", fmt.Errorf("pandoc: %w", err)
	}

	line, _, _ := strings.Cut(stdout, "\n")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", ErrEmptyVersion
	}
	return fields[len(fields)-1], nil
}
