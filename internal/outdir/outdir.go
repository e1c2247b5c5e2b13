// Package outdir manages the directory that receives expanded workflows.
//
// A [Dir] can either verify that its contents match a set of expanded
// documents ([Dir.Check]) or replace its contents with them ([Dir.Emit]).
// Each document is stored as <name>.<ext>.
package outdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"anchors/internal/document"
)

// DefaultPath is the output directory used when none is configured,
// relative to the repository root.
const DefaultPath = ".github/workflows"

// Sentinel errors for output directory failures.
var (
	// ErrNotRepoRoot indicates that the output directory does not exist,
	// which usually means the tool was not started from the repository root.
	ErrNotRepoRoot = errors.New("it seems that current dir is not repository root")

	// ErrMissingOutput indicates an expected output file is absent.
	ErrMissingOutput = errors.New("not exists")

	// ErrOutdatedOutput indicates an output file differs from its expansion.
	ErrOutdatedOutput = errors.New("is outdated")

	// ErrUnexpectedOutput indicates an output file with no matching workflow.
	ErrUnexpectedOutput = errors.New("should not exist")
)

// DriftError reports an output file that does not match the expansion.
// Err is [ErrMissingOutput], [ErrOutdatedOutput] or [ErrUnexpectedOutput].
type DriftError struct {
	Path string
	Err  error
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("file %s %v", e.Path, e.Err)
}

func (e *DriftError) Unwrap() error {
	return e.Err
}

// Dir is an output directory.
type Dir struct {
	path string
	ext  string
}

// New creates a [Dir]. Empty arguments select [DefaultPath] and
// [document.DefaultExtension].
func New(path, ext string) *Dir {
	if path == "" {
		path = DefaultPath
	}
	if ext == "" {
		ext = document.DefaultExtension
	}
	return &Dir{path: path, ext: strings.TrimPrefix(ext, ".")}
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// FilePath returns the path of the output file for the named workflow.
func (d *Dir) FilePath(name string) string {
	return filepath.Join(d.path, name+"."+d.ext)
}

// Verify checks that the directory exists.
func (d *Dir) Verify() error {
	info, err := os.Stat(d.path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s directory missing", ErrNotRepoRoot, d.path)
	}
	return nil
}

// Check verifies that the directory holds exactly the expanded documents.
//
// Every document must have a file that parses to a structurally equal value,
// and every directory entry must belong to one of the documents. The first
// mismatch is returned as a [*DriftError].
func (d *Dir) Check(expanded map[string]*yaml.Node) error {
	for _, name := range document.SortedNames(expanded) {
		path := d.FilePath(name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &DriftError{Path: path, Err: ErrMissingOutput}
			}
			return fmt.Errorf("path %s not readable: %w", path, err)
		}

		actual, err := document.LoadFile(path)
		if err != nil {
			return err
		}

		equal, err := document.Equal(actual, expanded[name])
		if err != nil {
			return fmt.Errorf("file %s: %w", path, err)
		}
		if !equal {
			return &DriftError{Path: path, Err: ErrOutdatedOutput}
		}
	}

	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("dir %s not readable: %w", d.path, err)
	}
	for _, entry := range entries {
		path := filepath.Join(d.path, entry.Name())
		stem := fileStem(entry.Name())
		if !utf8.ValidString(stem) {
			return fmt.Errorf("bad workflow file name: %s", path)
		}
		if _, ok := expanded[stem]; !ok {
			return &DriftError{Path: path, Err: ErrUnexpectedOutput}
		}
	}

	return nil
}

// Emit replaces the contents of the directory with the expanded documents.
// The directory is removed and recreated first; notify, when non-nil, is
// called with each workflow name before its file is written.
//
// Emit is not transactional: if it fails midway the directory holds only
// the files written so far.
func (d *Dir) Emit(expanded map[string]*yaml.Node, notify func(name string)) error {
	if err := d.reset(); err != nil {
		return fmt.Errorf("failed to delete old workflows: %w", err)
	}

	for _, name := range document.SortedNames(expanded) {
		if notify != nil {
			notify(name)
		}
		if err := d.write(name, expanded[name]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dir) reset() error {
	if err := os.RemoveAll(d.path); err != nil {
		return err
	}
	return os.MkdirAll(d.path, 0755)
}

// write stores one document through a temp file and a rename.
func (d *Dir) write(name string, node *yaml.Node) error {
	data, err := document.Marshal(node)
	if err != nil {
		return fmt.Errorf("workflow %s: %w", name, err)
	}

	path := d.FilePath(name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// fileStem returns name without its last extension. Names that are only an
// extension, such as ".keep", are returned whole.
func fileStem(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		return name
	}
	return stem
}
