package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// DefaultExtension is the file extension of template and output documents.
const DefaultExtension = "yaml"

// DefaultBlocksDir is the subdirectory of the templates directory that holds
// block fragments.
const DefaultBlocksDir = "blocks"

// Store holds the documents of one run.
//
// Both maps are keyed by file base name with the extension stripped. A Store
// is built once by [Loader.Load] and not modified afterwards.
type Store struct {
	// Workflows are the top-level documents to expand.
	Workflows map[string]*yaml.Node

	// Blocks are the named fragments available to $include.
	Blocks map[string]*yaml.Node
}

// WorkflowNames returns the workflow names in sorted order.
func (s *Store) WorkflowNames() []string {
	return SortedNames(s.Workflows)
}

// SortedNames returns the keys of docs in sorted order.
func SortedNames(docs map[string]*yaml.Node) []string {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Loader reads a templates directory into a [Store].
//
// Use [NewLoader] to get a loader with the default layout: workflows are the
// *.yaml files of the templates directory and blocks are the *.yaml files of
// its blocks/ subdirectory.
type Loader struct {
	blocksDir string
	ext       string
}

// NewLoader creates a [Loader]. Empty arguments select [DefaultBlocksDir]
// and [DefaultExtension].
func NewLoader(blocksDir, ext string) *Loader {
	if blocksDir == "" {
		blocksDir = DefaultBlocksDir
	}
	if ext == "" {
		ext = DefaultExtension
	}
	return &Loader{
		blocksDir: blocksDir,
		ext:       strings.TrimPrefix(ext, "."),
	}
}

// Load reads the workflows of templatesDir and the blocks of its blocks
// subdirectory. Both directories must be readable.
func (l *Loader) Load(templatesDir string) (*Store, error) {
	workflows, err := LoadDir(templatesDir, l.ext)
	if err != nil {
		return nil, err
	}

	blocks, err := LoadDir(filepath.Join(templatesDir, l.blocksDir), l.ext)
	if err != nil {
		return nil, err
	}

	return &Store{Workflows: workflows, Blocks: blocks}, nil
}

// LoadDir parses every file of dir with the given extension, without
// descending into subdirectories. Files whose name is only the extension
// (".yaml") are skipped.
func LoadDir(dir, ext string) (map[string]*yaml.Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dir %s not readable: %w", dir, err)
	}

	suffix := "." + ext
	docs := make(map[string]*yaml.Node)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		name := strings.TrimSuffix(entry.Name(), suffix)
		if name == "" {
			continue
		}
		if !utf8.ValidString(name) {
			return nil, fmt.Errorf("file name is not utf8: %s", path)
		}

		node, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		docs[name] = node
	}

	return docs, nil
}

// LoadFile reads and parses one YAML document.
func LoadFile(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("path %s not readable: %w", path, err)
	}

	node, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("file %s is not valid YAML: %w", path, err)
	}
	return node, nil
}
