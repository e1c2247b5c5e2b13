// Package document holds the structured values anchors works on and the
// store of template documents they are loaded into.
//
// Values are yaml.v3 nodes. A [yaml.Node] already is the closed variant the
// expansion engine needs: scalars carry null, bool, number and string values
// (told apart by their resolved tag), mapping nodes keep key order and
// sequence nodes keep element order.
//
// Key types:
//   - [Store] holds the workflow documents and the block fragments of one run
//   - [Loader] builds a [Store] from a templates directory
//
// Helpers in this file treat nodes as immutable values: [Clone] materialises
// aliases and never returns a node shared with its input, [Equal] compares
// two documents structurally.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"
)

// Resolved tags of the scalar shapes the engine looks at.
const (
	NullTag = "!!null"
	StrTag  = "!!str"
)

// ErrAliasCycle is returned when an alias refers to a node that contains the
// alias itself. Such a value has no finite expansion.
var ErrAliasCycle = errors.New("alias refers to its own ancestor")

// ErrMultipleDocuments is returned by [Parse] for input with a second
// "---" document.
var ErrMultipleDocuments = errors.New("expected a single YAML document")

// Null returns a new null scalar.
func Null() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: NullTag, Value: "null"}
}

// IsString reports whether node is a string scalar.
func IsString(node *yaml.Node) bool {
	return node != nil && node.Kind == yaml.ScalarNode && node.ShortTag() == StrTag
}

// Resolve unwraps document and alias nodes until it reaches a value node.
// A nil node or an empty document resolves to a null scalar.
func Resolve(node *yaml.Node) *yaml.Node {
	for node != nil {
		switch node.Kind {
		case 0:
			return Null()
		case yaml.DocumentNode:
			if len(node.Content) == 0 {
				return Null()
			}
			node = node.Content[0]
		case yaml.AliasNode:
			node = node.Alias
		default:
			return node
		}
	}
	return Null()
}

// Clone returns a deep copy of node. Aliases are replaced by copies of the
// nodes they refer to; anchors and comments are dropped.
func Clone(node *yaml.Node) (*yaml.Node, error) {
	return clone(node, make(map[*yaml.Node]bool))
}

func clone(node *yaml.Node, ancestors map[*yaml.Node]bool) (*yaml.Node, error) {
	if node != nil && node.Kind == yaml.AliasNode && ancestors[node.Alias] {
		return nil, fmt.Errorf("%w: *%s", ErrAliasCycle, node.Value)
	}
	node = Resolve(node)

	out := CopyScalar(node)
	if node.Kind == yaml.ScalarNode {
		return out, nil
	}

	ancestors[node] = true
	defer delete(ancestors, node)

	out.Content = make([]*yaml.Node, 0, len(node.Content))
	for _, child := range node.Content {
		c, err := clone(child, ancestors)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, c)
	}
	return out, nil
}

// CopyScalar returns a copy of node's own fields without its children.
// Anchors, comments and positions are not carried over.
func CopyScalar(node *yaml.Node) *yaml.Node {
	return &yaml.Node{
		Kind:  node.Kind,
		Style: node.Style,
		Tag:   node.Tag,
		Value: node.Value,
	}
}

// Equal reports whether a and b hold the same structured value. Mapping key
// order is not significant, sequence order is. Scalars are compared by their
// decoded value, so quoting and number formatting do not matter. Keys may be
// any value, including sequences and mappings.
func Equal(a, b *yaml.Node) (bool, error) {
	return equal(a, b, make(map[*yaml.Node]bool), make(map[*yaml.Node]bool))
}

func equal(a, b *yaml.Node, aSeen, bSeen map[*yaml.Node]bool) (bool, error) {
	for _, side := range []struct {
		node *yaml.Node
		seen map[*yaml.Node]bool
	}{{a, aSeen}, {b, bSeen}} {
		if side.node != nil && side.node.Kind == yaml.AliasNode && side.seen[side.node.Alias] {
			return false, fmt.Errorf("%w: *%s", ErrAliasCycle, side.node.Value)
		}
	}
	a, b = Resolve(a), Resolve(b)
	if a.Kind != b.Kind {
		return false, nil
	}

	switch a.Kind {
	case yaml.ScalarNode:
		return equalScalar(a, b)
	case yaml.SequenceNode, yaml.MappingNode:
		if len(a.Content) != len(b.Content) {
			return false, nil
		}
	default:
		return false, fmt.Errorf("unexpected YAML node kind %d", a.Kind)
	}

	aSeen[a], bSeen[b] = true, true
	defer delete(aSeen, a)
	defer delete(bSeen, b)

	if a.Kind == yaml.SequenceNode {
		for i := range a.Content {
			eq, err := equal(a.Content[i], b.Content[i], aSeen, bSeen)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}

	// Keys are unique within a mapping, so every key of a must match exactly
	// one key of b.
	for i := 0; i+1 < len(a.Content); i += 2 {
		j, err := findKey(b, a.Content[i], aSeen, bSeen)
		if err != nil || j < 0 {
			return false, err
		}
		eq, err := equal(a.Content[i+1], b.Content[j+1], aSeen, bSeen)
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

// findKey returns the content index of the key of mapping m equal to key,
// or -1.
func findKey(m, key *yaml.Node, aSeen, bSeen map[*yaml.Node]bool) (int, error) {
	for j := 0; j+1 < len(m.Content); j += 2 {
		eq, err := equal(key, m.Content[j], aSeen, bSeen)
		if err != nil {
			return -1, err
		}
		if eq {
			return j, nil
		}
	}
	return -1, nil
}

func equalScalar(a, b *yaml.Node) (bool, error) {
	av, err := decodeScalar(a)
	if err != nil {
		return false, err
	}
	bv, err := decodeScalar(b)
	if err != nil {
		return false, err
	}
	return cmp.Equal(av, bv, cmpopts.EquateNaNs()), nil
}

func decodeScalar(node *yaml.Node) (any, error) {
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode scalar %q: %w", node.Value, err)
	}
	return v, nil
}

// Parse parses data as a single YAML document. Empty input parses to a null
// scalar; input holding more than one document fails with
// [ErrMultipleDocuments].
func Parse(data []byte) (*yaml.Node, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Null(), nil
		}
		return nil, err
	}

	var next yaml.Node
	if err := dec.Decode(&next); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, ErrMultipleDocuments
	}
	return Resolve(&doc), nil
}

// Marshal serializes node as a YAML document with two-space indentation.
func Marshal(node *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return buf.Bytes(), nil
}
