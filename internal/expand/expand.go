// Package expand resolves $include directives in template documents.
//
// An include marker is a mapping with the single key "$include" whose value
// is the name of a block:
//
//	steps:
//	  - $include: checkout
//
// [Expander.Expand] walks a document top-down and replaces every marker it
// reaches with a copy of the named block. Mapping values and sequence
// elements are visited; mapping keys are copied as they are. The input
// document and the blocks are never modified, and a document either expands
// completely or not at all.
//
// Key types:
//   - [Expander] expands documents against one set of blocks
//   - [IncludeError] reports a marker that could not be resolved
//   - [NestedMode] selects what happens to markers inside blocks
package expand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"anchors/internal/document"
)

// IncludeKey is the reserved mapping key of an include marker.
const IncludeKey = "$include"

// Sentinel errors for expansion failures. They are wrapped in an
// [IncludeError] or in a contextual error; test for them with errors.Is.
var (
	// ErrUnknownInclude indicates a marker naming a block that does not exist.
	ErrUnknownInclude = errors.New("unknown $include")

	// ErrMalformedInclude indicates a mapping that uses the $include key
	// without being a well-formed marker (extra keys or a non-string value).
	// Only reported in strict mode.
	ErrMalformedInclude = errors.New("malformed $include")

	// ErrNestedInclude indicates a block that itself contains a marker while
	// nested includes are rejected.
	ErrNestedInclude = errors.New("block contains $include")

	// ErrIncludeCycle indicates a block that includes itself, directly or
	// through other blocks.
	ErrIncludeCycle = errors.New("$include cycle")
)

// IncludeError describes a marker that could not be resolved.
type IncludeError struct {
	// Name is the block name of the failing marker.
	Name string

	// Chain lists the blocks being expanded when the marker was reached,
	// outermost first. Empty for markers in the workflow document itself.
	Chain []string

	// Err is one of the package sentinel errors.
	Err error
}

func (e *IncludeError) Error() string {
	if errors.Is(e.Err, ErrIncludeCycle) {
		return fmt.Sprintf("%v: %s", e.Err, strings.Join(append(slices.Clone(e.Chain), e.Name), " -> "))
	}
	msg := fmt.Sprintf("%v: %s", e.Err, e.Name)
	if len(e.Chain) > 0 {
		msg += fmt.Sprintf(" (included from %s)", strings.Join(e.Chain, " -> "))
	}
	return msg
}

func (e *IncludeError) Unwrap() error {
	return e.Err
}

// NestedMode selects how markers inside blocks are handled.
type NestedMode string

const (
	// NestedReject inserts blocks as they are and fails with
	// [ErrNestedInclude] when an inserted block contains a marker.
	NestedReject NestedMode = "reject"

	// NestedExpand expands blocks before inserting them and fails with
	// [ErrIncludeCycle] when a block includes itself.
	NestedExpand NestedMode = "expand"
)

// ParseNestedMode converts a configuration string into a [NestedMode].
// The empty string selects [NestedReject].
func ParseNestedMode(s string) (NestedMode, error) {
	switch NestedMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", NestedReject:
		return NestedReject, nil
	case NestedExpand:
		return NestedExpand, nil
	default:
		return "", fmt.Errorf("unknown nested include mode %q (want %q or %q)", s, NestedReject, NestedExpand)
	}
}

// Option configures an [Expander].
type Option func(*Expander)

// WithStrict controls whether mappings that use the $include key without
// being a well-formed marker are rejected (true, the default) or treated as
// ordinary mappings.
func WithStrict(strict bool) Option {
	return func(e *Expander) {
		e.strict = strict
	}
}

// WithNested sets the [NestedMode]. The default is [NestedReject].
func WithNested(mode NestedMode) Option {
	return func(e *Expander) {
		e.nested = mode
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Expander) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProgress registers a callback that [All] invokes with each workflow
// name before expanding it.
func WithProgress(fn func(name string)) Option {
	return func(e *Expander) {
		e.progress = fn
	}
}

// Expander expands documents against a fixed set of blocks.
//
// Create instances with [New]. An Expander only reads its blocks, so one
// instance can expand any number of documents.
type Expander struct {
	blocks   map[string]*yaml.Node
	strict   bool
	nested   NestedMode
	logger   *slog.Logger
	progress func(name string)
}

// New creates an [Expander] over blocks.
func New(blocks map[string]*yaml.Node, opts ...Option) *Expander {
	e := &Expander{
		blocks: blocks,
		strict: true,
		nested: NestedReject,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns a new document with every include marker reachable from
// node replaced by its block. The result contains no markers and shares no
// nodes with node or with the blocks.
func (e *Expander) Expand(node *yaml.Node) (*yaml.Node, error) {
	return e.expand(node, nil, make(map[*yaml.Node]bool))
}

func (e *Expander) expand(node *yaml.Node, chain []string, ancestors map[*yaml.Node]bool) (*yaml.Node, error) {
	if node != nil && node.Kind == yaml.AliasNode && ancestors[node.Alias] {
		return nil, fmt.Errorf("%w: *%s", document.ErrAliasCycle, node.Value)
	}
	node = document.Resolve(node)

	name, ok, err := e.decodeInclude(node)
	if err != nil {
		return nil, err
	}
	if ok {
		return e.include(name, chain)
	}

	out := document.CopyScalar(node)
	if node.Kind == yaml.ScalarNode {
		return out, nil
	}

	ancestors[node] = true
	defer delete(ancestors, node)

	out.Content = make([]*yaml.Node, 0, len(node.Content))
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, err := document.Clone(node.Content[i])
			if err != nil {
				return nil, err
			}
			value, err := e.expand(node.Content[i+1], chain, ancestors)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, key, value)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			value, err := e.expand(item, chain, ancestors)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, value)
		}
	default:
		return nil, fmt.Errorf("unexpected YAML node kind %d", node.Kind)
	}
	return out, nil
}

// decodeInclude tries to read node as an include marker. It reports the
// block name and true for a marker, false for any other node, and an error
// for a malformed marker in strict mode.
func (e *Expander) decodeInclude(node *yaml.Node) (string, bool, error) {
	if node.Kind != yaml.MappingNode {
		return "", false, nil
	}

	idx := -1
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := document.Resolve(node.Content[i])
		if document.IsString(key) && key.Value == IncludeKey {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false, nil
	}

	value := document.Resolve(node.Content[idx+1])
	switch {
	case len(node.Content) == 2 && document.IsString(value):
		return value.Value, true, nil
	case !e.strict:
		return "", false, nil
	case len(node.Content) != 2:
		return "", false, fmt.Errorf("%w: %s must be the only key of its mapping (line %d)", ErrMalformedInclude, IncludeKey, node.Line)
	default:
		return "", false, fmt.Errorf("%w: expected a block name, got %s (line %d)", ErrMalformedInclude, value.ShortTag(), node.Line)
	}
}

func (e *Expander) include(name string, chain []string) (*yaml.Node, error) {
	block, ok := e.blocks[name]
	if !ok {
		return nil, &IncludeError{Name: name, Chain: chain, Err: ErrUnknownInclude}
	}
	e.logger.Debug("resolving include", "block", name, "depth", len(chain))

	if e.nested == NestedExpand {
		if slices.Contains(chain, name) {
			return nil, &IncludeError{Name: name, Chain: chain, Err: ErrIncludeCycle}
		}
		return e.expand(block, append(slices.Clone(chain), name), make(map[*yaml.Node]bool))
	}

	found, err := e.containsInclude(block, make(map[*yaml.Node]bool))
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", name, err)
	}
	if found {
		return nil, &IncludeError{Name: name, Chain: chain, Err: ErrNestedInclude}
	}
	return document.Clone(block)
}

// containsInclude reports whether a marker is reachable from node.
func (e *Expander) containsInclude(node *yaml.Node, seen map[*yaml.Node]bool) (bool, error) {
	node = document.Resolve(node)
	if seen[node] {
		return false, nil
	}
	seen[node] = true

	_, ok, err := e.decodeInclude(node)
	if err != nil || ok {
		return ok, err
	}

	for i, child := range node.Content {
		if node.Kind == yaml.MappingNode && i%2 == 0 {
			continue
		}
		found, err := e.containsInclude(child, seen)
		if err != nil || found {
			return found, err
		}
	}
	return false, nil
}

// All expands every workflow of store in name order and returns the results
// keyed by workflow name. The first failure aborts the run; its error names
// the workflow.
func All(ctx context.Context, store *document.Store, opts ...Option) (map[string]*yaml.Node, error) {
	e := New(store.Blocks, opts...)

	expanded := make(map[string]*yaml.Node, len(store.Workflows))
	for _, name := range store.WorkflowNames() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.progress != nil {
			e.progress(name)
		}

		out, err := e.Expand(store.Workflows[name])
		if err != nil {
			return nil, fmt.Errorf("error in workflow %s: %w", name, err)
		}
		expanded[name] = out
	}
	return expanded, nil
}
