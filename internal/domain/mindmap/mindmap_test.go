package mindmap

import (
	"errors"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"Short story", "short-story"},
		{"Financial   Statements", "financial-statements"},
		{"KnowledgeCompass", "knowledgecompass"},
		{"Café Tales", "café-tales"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.name); got != tt.expected {
				t.Errorf("Slug(%q) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestDefaultCatalogLeavesAreNarratedOrEmpty(t *testing.T) {
	tree := Default()
	tree.Walk(func(n *Node, _ int) bool {
		if !n.IsLeaf() && n.ContentRef != "" {
			t.Errorf("branch %q carries content %q", n.ID, n.ContentRef)
		}
		return true
	})

	n := tree.Find("short-story")
	if n == nil {
		t.Fatal("Find(short-story) = nil")
	}
	if !n.Narrated() || n.ContentRef != "data/story-small.json" {
		t.Errorf("short-story = %+v", n)
	}
	if len(tree.Leaves()) != 10 {
		t.Errorf("Leaves() = %d, want 10", len(tree.Leaves()))
	}
}

func TestUpsertNode(t *testing.T) {
	tree := Default()
	before := len(tree.Root.Children)

	n, err := tree.UpsertNode("mall-trip", "Mall Trip", "data/mall-trip.json")
	if err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}
	if len(tree.Root.Children) != before+1 {
		t.Errorf("root children = %d, want %d", len(tree.Root.Children), before+1)
	}

	again, err := tree.UpsertNode("mall-trip", "Mall Trip II", "data/mall-trip-2.json")
	if err != nil {
		t.Fatalf("UpsertNode() update error = %v", err)
	}
	if again != n {
		t.Error("update should return the existing node")
	}
	if len(tree.Root.Children) != before+1 {
		t.Error("update must not add a node")
	}
	if n.Name != "Mall Trip II" || n.ContentRef != "data/mall-trip-2.json" {
		t.Errorf("node = %+v", n)
	}

	if _, err := tree.UpsertNode("accountancy", "Accountancy", "data/x.json"); !errors.Is(err, ErrBranchNode) {
		t.Errorf("UpsertNode(branch) error = %v, want ErrBranchNode", err)
	}
}

func TestApply(t *testing.T) {
	tree := Default()
	err := tree.Apply([]Record{
		{ID: "companies", Name: "Companies", ContentRef: "data/companies-v2.json"},
		{ID: "new-node", Name: "New Node", ContentRef: "data/new-node.json"},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := tree.Find("companies").ContentRef; got != "data/companies-v2.json" {
		t.Errorf("companies ref = %q", got)
	}
	if tree.Find("new-node") == nil {
		t.Error("new-node not inserted")
	}
}
