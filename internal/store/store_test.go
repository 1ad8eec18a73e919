package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bigpicture/internal/domain/mindmap"
	"bigpicture/internal/domain/story"
)

func sampleDocument() *story.Document {
	return &story.Document{
		Title: "Mall Trip",
		Metadata: story.Metadata{
			SourceName:  "mall.txt",
			Kind:        story.Kind,
			LengthClass: story.LengthShort,
		},
		DefaultSpeaker: "Narrator",
		Paragraphs: []story.Paragraph{
			{Speaker: "Narrator", Text: "Stop 1 <food court>"},
			{Speaker: "Neil", Text: "I agree"},
		},
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	root := t.TempDir()
	docs := NewDocumentStore(root)

	path, err := docs.Save("mall-trip", sampleDocument())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if path != filepath.Join(root, "data", "mall-trip.json") {
		t.Errorf("Save() path = %q", path)
	}

	doc, err := docs.Load(Ref("mall-trip"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Title != "Mall Trip" || doc.Len() != 2 || doc.Paragraphs[0].Text != "Stop 1 <food court>" {
		t.Errorf("Load() = %+v", doc)
	}
	if doc.Metadata.LengthClass != story.LengthShort {
		t.Errorf("LengthClass = %q", doc.Metadata.LengthClass)
	}
}

func TestDocumentLoadErrors(t *testing.T) {
	root := t.TempDir()
	docs := NewDocumentStore(root)

	if _, err := docs.Load("data/missing.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := docs.Load(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(empty ref) error = %v, want ErrNotFound", err)
	}

	if err := os.MkdirAll(filepath.Join(root, "data"), 0755); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(root, "data", "broken.json")
	if err := os.WriteFile(broken, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := docs.Load("data/broken.json"); !errors.Is(err, ErrParseError) {
		t.Errorf("Load(broken) error = %v, want ErrParseError", err)
	}

	empty := filepath.Join(root, "data", "empty.json")
	if err := os.WriteFile(empty, []byte(`{"title":"x","paragraphs":[]}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := docs.Load("data/empty.json"); !errors.Is(err, ErrParseError) {
		t.Errorf("Load(no paragraphs) error = %v, want ErrParseError", err)
	}
}

func TestTreeStoreUpsert(t *testing.T) {
	root := t.TempDir()
	trees := NewTreeStore(root)

	if got := trees.Records(); len(got) != 0 {
		t.Fatalf("Records() on missing file = %v", got)
	}

	if err := trees.UpsertNode("mall-trip", "Mall Trip", "data/mall-trip.json"); err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}
	if err := trees.UpsertNode("zoo", "Zoo", "data/zoo.json"); err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}
	if err := trees.UpsertNode("mall-trip", "Mall Trip", "data/mall-trip-v2.json"); err != nil {
		t.Fatalf("UpsertNode() update error = %v", err)
	}

	records := trees.Records()
	want := []mindmap.Record{
		{ID: "mall-trip", Name: "Mall Trip", ContentRef: "data/mall-trip-v2.json"},
		{ID: "zoo", Name: "Zoo", ContentRef: "data/zoo.json"},
	}
	if len(records) != len(want) {
		t.Fatalf("Records() = %+v", records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, records[i], want[i])
		}
	}

	tree := trees.Tree()
	if n := tree.Find("zoo"); n == nil || n.ContentRef != "data/zoo.json" {
		t.Errorf("Find(zoo) = %+v", n)
	}
}

func TestTreeStoreSkipsRecordsClashingWithBranches(t *testing.T) {
	trees := NewTreeStore(t.TempDir())

	if err := trees.UpsertNode("accountancy", "Accountancy", Ref("accountancy")); err != nil {
		t.Fatal(err)
	}
	if err := trees.UpsertNode("fresh-node", "Fresh Node", Ref("fresh-node")); err != nil {
		t.Fatal(err)
	}

	tree := trees.Tree()
	if n := tree.Find("fresh-node"); n == nil || !n.Narrated() {
		t.Errorf("Find(fresh-node) = %+v", n)
	}
	branch := tree.Find("accountancy")
	if branch == nil || branch.IsLeaf() || branch.ContentRef != "" {
		t.Errorf("catalog branch was altered: %+v", branch)
	}
}

func TestTreeStoreCorruptFileStartsEmpty(t *testing.T) {
	root := t.TempDir()
	trees := NewTreeStore(root)

	if err := os.MkdirAll(filepath.Dir(trees.Path()), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(trees.Path(), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := trees.Records(); got != nil {
		t.Errorf("Records() = %v, want empty", got)
	}
	if err := trees.UpsertNode("a", "A", "data/a.json"); err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}
	if got := trees.Records(); len(got) != 1 {
		t.Errorf("Records() = %v, want one node", got)
	}
}

func TestTreeStoreWatch(t *testing.T) {
	root := t.TempDir()
	trees := NewTreeStore(root)
	trees.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *mindmap.Tree, 4)
	ready := make(chan error, 1)
	go func() {
		ready <- trees.Watch(ctx, func(t *mindmap.Tree) { changed <- t })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := trees.UpsertNode("watched", "Watched", "data/watched.json"); err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}

	select {
	case tree := <-changed:
		if tree.Find("watched") == nil {
			t.Error("watched tree is missing the new node")
		}
	case err := <-ready:
		t.Fatalf("Watch() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestTreeStoreWatchStopsNotifyingAfterCancel(t *testing.T) {
	trees := NewTreeStore(t.TempDir())
	trees.debounce = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan struct{}, 4)
	returned := make(chan error, 1)
	go func() {
		returned <- trees.Watch(ctx, func(*mindmap.Tree) { changed <- struct{}{} })
	}()

	time.Sleep(100 * time.Millisecond)
	if err := trees.UpsertNode("late", "Late", "data/late.json"); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-returned:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}

	select {
	case <-changed:
		t.Error("change reported after the watch was cancelled")
	case <-time.After(300 * time.Millisecond):
	}
}
