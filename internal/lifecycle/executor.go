// Package lifecycle orchestrates one anchors run from templates to output.
//
// The lifecycle package provides [Executor], which runs the fixed sequence
// load -> expand -> check-or-emit. Every step is fail-fast: the first error
// ends the run and is returned with the name of the document or file it
// concerns.
//
// Key concepts:
//   - Templates are read through a [Loader] into a [document.Store]
//   - Each workflow is expanded with [expand.All]
//   - The result is compared with or written to a [Target] depending on [Mode]
//   - Progress can be tracked via [ProgressCallback]
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"anchors/internal/document"
	"anchors/internal/expand"
)

// ErrTemplatesDirMissing indicates that the templates directory given on
// the command line does not exist.
var ErrTemplatesDirMissing = errors.New("templates dir does not exist")

// Mode selects what the executor does with the expanded workflows.
type Mode int

const (
	// ModeCheck verifies that the target already holds the expansion.
	ModeCheck Mode = iota

	// ModeModify replaces the target contents with the expansion.
	ModeModify
)

func (m Mode) String() string {
	if m == ModeModify {
		return "modify"
	}
	return "check"
}

// Stage identifies the step a [ProgressCallback] is reporting on.
type Stage int

const (
	// StageExpand is reported before a workflow is expanded.
	StageExpand Stage = iota

	// StageEmit is reported before a workflow file is written.
	StageEmit
)

// Loader is the interface for reading a templates directory.
//
// The [document.Loader] type implements this interface.
type Loader interface {
	Load(templatesDir string) (*document.Store, error)
}

// Target is the interface for the directory receiving expanded workflows.
//
// Verify checks the directory precondition before any work is done, Check
// compares the directory with the expansion and Emit overwrites it. The
// [outdir.Dir] type implements this interface.
type Target interface {
	Path() string
	Verify() error
	Check(expanded map[string]*yaml.Node) error
	Emit(expanded map[string]*yaml.Node, notify func(name string)) error
}

// ProgressCallback is invoked before each workflow is expanded or emitted.
type ProgressCallback func(stage Stage, name string)

// Result summarises a successful run.
type Result struct {
	// Mode is the mode the run used.
	Mode Mode

	// Workflows lists the expanded workflow names in processing order.
	Workflows []string
}

// Executor runs the load -> expand -> check-or-emit sequence.
//
// Executor uses dependency injection for testability: [Loader] reads
// templates and [Target] owns the output directory. Use [NewExecutor] to
// create an instance and [Executor.Execute] to run it.
type Executor struct {
	loader           Loader
	target           Target
	expandOpts       []expand.Option
	progressCallback ProgressCallback
	logger           *slog.Logger
}

// NewExecutor creates a new Executor. opts are passed to the expansion
// engine for every run.
func NewExecutor(loader Loader, target Target, opts ...expand.Option) *Executor {
	return &Executor{
		loader:     loader,
		target:     target,
		expandOpts: opts,
		logger:     slog.New(slog.DiscardHandler),
	}
}

// SetProgressCallback configures an optional progress callback.
func (e *Executor) SetProgressCallback(cb ProgressCallback) {
	e.progressCallback = cb
}

// SetLogger configures the logger for debug output. A nil logger is ignored.
func (e *Executor) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

func (e *Executor) progress(stage Stage, name string) {
	if e.progressCallback != nil {
		e.progressCallback(stage, name)
	}
}

// Execute runs anchors against templatesDir.
//
// Preconditions are checked before anything is read: templatesDir must
// exist ([ErrTemplatesDirMissing]) and the target must pass Verify. Then the
// templates are loaded, every workflow is expanded, and the expansion is
// either checked against the target (ModeCheck) or written to it
// (ModeModify).
func (e *Executor) Execute(ctx context.Context, templatesDir string, mode Mode) (*Result, error) {
	if _, err := os.Stat(templatesDir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplatesDirMissing, templatesDir)
	}
	if err := e.target.Verify(); err != nil {
		return nil, err
	}

	store, err := e.loader.Load(templatesDir)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("templates loaded",
		"dir", templatesDir,
		"workflows", len(store.Workflows),
		"blocks", len(store.Blocks))

	opts := append([]expand.Option{
		expand.WithLogger(e.logger),
		expand.WithProgress(func(name string) { e.progress(StageExpand, name) }),
	}, e.expandOpts...)
	expanded, err := expand.All(ctx, store, opts...)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch mode {
	case ModeModify:
		err = e.target.Emit(expanded, func(name string) { e.progress(StageEmit, name) })
	default:
		err = e.target.Check(expanded)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("run complete", "mode", mode.String(), "target", e.target.Path())
	return &Result{Mode: mode, Workflows: store.WorkflowNames()}, nil
}
