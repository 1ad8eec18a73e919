// Package store persists narration documents and the content tree as JSON
// files under a root directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"bigpicture/internal/domain/story"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrParseError = errors.New("document could not be parsed")
)

// DataDir is the directory, relative to the root, holding all JSON files.
const DataDir = "data"

// DocumentStore loads and saves narration documents.
type DocumentStore struct {
	root string
}

func NewDocumentStore(root string) *DocumentStore {
	return &DocumentStore{root: root}
}

// Ref returns the content reference a node id is saved under.
func Ref(nodeID string) string {
	return DataDir + "/" + nodeID + ".json"
}

// Path resolves a content reference against the store root.
func (s *DocumentStore) Path(ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(s.root, filepath.FromSlash(ref))
}

// Load reads the document behind ref.
func (s *DocumentStore) Load(ref string) (*story.Document, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("empty content reference: %w", ErrNotFound)
	}
	path := s.Path(ref)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc story.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", ref, ErrParseError, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", ref, ErrParseError, err)
	}

	logrus.WithFields(logrus.Fields{
		"ref":        ref,
		"paragraphs": doc.Len(),
	}).Debug("loaded narration document")

	return &doc, nil
}

// Save writes doc to data/<nodeID>.json and returns the file path.
func (s *DocumentStore) Save(nodeID string, doc *story.Document) (string, error) {
	path := s.Path(Ref(nodeID))
	if err := writeJSON(path, doc); err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"node":       nodeID,
		"paragraphs": doc.Len(),
		"file":       path,
	}).Info("saved narration document")

	return path, nil
}

// writeJSON replaces path with the indented encoding of v.
func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
