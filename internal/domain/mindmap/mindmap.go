package mindmap

import (
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrBranchNode is returned when narration is attached to a node with children.
var ErrBranchNode = errors.New("node has children and cannot reference content")

// Node is one topic in the content tree. A node either has children or
// references a narration document, never both.
type Node struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Children   []*Node `json:"children,omitempty"`
	ContentRef string  `json:"content,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Narrated reports whether the node references a narration document.
func (n *Node) Narrated() bool {
	return n.IsLeaf() && n.ContentRef != ""
}

// Record is the persisted form of an upserted node.
type Record struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ContentRef string `json:"content"`
}

// Tree is the hierarchical topic catalog.
type Tree struct {
	Root *Node
}

var whitespace = regexp.MustCompile(`\s+`)

var lower = cases.Lower(language.Und)

// Slug turns a display name into a stable node id.
func Slug(name string) string {
	return whitespace.ReplaceAllString(lower.String(name), "-")
}

// NewNode builds a node whose id is derived from its name.
func NewNode(name string, children ...*Node) *Node {
	return &Node{ID: Slug(name), Name: name, Children: children}
}

// Leaf builds a leaf node that references a narration document.
func Leaf(name, contentRef string) *Node {
	return &Node{ID: Slug(name), Name: name, ContentRef: contentRef}
}

// New wraps root in a Tree.
func New(root *Node) *Tree {
	return &Tree{Root: root}
}

// Walk visits every node depth-first in catalog order. The level of the root
// is 0. Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(n *Node, level int) bool) {
	if t.Root == nil {
		return
	}
	walk(t.Root, 0, fn)
}

func walk(n *Node, level int, fn func(*Node, int) bool) bool {
	if !fn(n, level) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, level+1, fn) {
			return false
		}
	}
	return true
}

// Find returns the node with the given id, or nil.
func (t *Tree) Find(id string) *Node {
	var found *Node
	t.Walk(func(n *Node, _ int) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Leaves returns every leaf in catalog order.
func (t *Tree) Leaves() []*Node {
	var leaves []*Node
	t.Walk(func(n *Node, level int) bool {
		if n.IsLeaf() && level > 0 {
			leaves = append(leaves, n)
		}
		return true
	})
	return leaves
}

// UpsertNode inserts a new leaf under the root or updates the name and
// content reference of the existing node with the same id.
func (t *Tree) UpsertNode(id, name, contentRef string) (*Node, error) {
	if t.Root == nil {
		return nil, fmt.Errorf("upsert %q: tree has no root", id)
	}

	if n := t.Find(id); n != nil {
		if !n.IsLeaf() && contentRef != "" {
			return nil, fmt.Errorf("upsert %q: %w", id, ErrBranchNode)
		}
		n.Name = name
		n.ContentRef = contentRef
		return n, nil
	}

	n := &Node{ID: id, Name: name, ContentRef: contentRef}
	t.Root.Children = append(t.Root.Children, n)
	return n, nil
}

// Apply merges persisted records into the tree, in order.
func (t *Tree) Apply(records []Record) error {
	for _, r := range records {
		if _, err := t.UpsertNode(r.ID, r.Name, r.ContentRef); err != nil {
			return err
		}
	}
	return nil
}

// Default returns the built-in catalog.
func Default() *Tree {
	return New(NewNode("CBSE Commerce Big picture",
		NewNode("KnowledgeCompass",
			Leaf("Short story", "data/story-small.json"),
			Leaf("Long Story", "data/long-story.json"),
		),
		NewNode("Accountancy",
			Leaf("Partnership", "data/partnership.json"),
			Leaf("Companies", "data/companies.json"),
			Leaf("Financial Statements", "data/financial-statements.json"),
			NewNode("Cashflow Statement"),
		),
		NewNode("Business Studies",
			NewNode("Principles and functions of Management"),
			NewNode("Business Finance and Marketing"),
		),
		NewNode("Economics",
			NewNode("Macro Economics"),
			NewNode("Indian Economy"),
		),
	))
}
