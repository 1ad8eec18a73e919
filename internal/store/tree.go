package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"bigpicture/internal/domain/mindmap"
)

// TreeFile is the name of the tree store inside the data directory.
const TreeFile = "mindmap.json"

type treeFile struct {
	Nodes []mindmap.Record `json:"nodes"`
}

// TreeStore keeps the upserted nodes of the content tree. The file is read
// and rewritten whole on every mutation.
type TreeStore struct {
	path     string
	debounce time.Duration
	mu       sync.Mutex
}

func NewTreeStore(root string) *TreeStore {
	return &TreeStore{
		path:     filepath.Join(root, DataDir, TreeFile),
		debounce: 200 * time.Millisecond,
	}
}

// Path returns the tree file location.
func (s *TreeStore) Path() string {
	return s.path
}

// Records loads every stored node. A missing or unreadable file is an empty tree.
func (s *TreeStore) Records() []mindmap.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *TreeStore) readLocked() []mindmap.Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).WithField("file", s.path).Warn("failed to read tree store")
		}
		return nil
	}

	var f treeFile
	if err := json.Unmarshal(data, &f); err != nil {
		logrus.WithError(err).WithField("file", s.path).Warn("tree store is corrupt, starting empty")
		return nil
	}
	return f.Nodes
}

// UpsertNode inserts the node or updates the name and content of the one with the same id.
func (s *TreeStore) UpsertNode(id, name, contentRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.readLocked()
	updated := false
	for i := range records {
		if records[i].ID == id {
			records[i].Name = name
			records[i].ContentRef = contentRef
			updated = true
			break
		}
	}
	if !updated {
		records = append(records, mindmap.Record{ID: id, Name: name, ContentRef: contentRef})
	}

	if err := writeJSON(s.path, treeFile{Nodes: records}); err != nil {
		return fmt.Errorf("failed to save tree store: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"node":    id,
		"updated": updated,
		"total":   len(records),
	}).Info("upserted tree node")
	return nil
}

// Tree returns the built-in catalog merged with the stored records. Records
// that clash with a catalog branch are skipped.
func (s *TreeStore) Tree() *mindmap.Tree {
	tree := mindmap.Default()
	for _, r := range s.Records() {
		if _, err := tree.UpsertNode(r.ID, r.Name, r.ContentRef); err != nil {
			logrus.WithError(err).WithField("node", r.ID).Warn("skipping tree record")
		}
	}
	return tree
}

// Watch calls fn with the merged tree each time the tree file changes,
// until ctx is done. Bursts of writes are debounced.
func (s *TreeStore) Watch(ctx context.Context, fn func(*mindmap.Tree)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: the file is replaced by rename on every write.
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, func() {
				// Stop does not wait for a callback that already started.
				if ctx.Err() != nil {
					return
				}
				fn(s.Tree())
			})

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logrus.WithError(err).Warn("tree watcher error")
		}
	}
}
