// Package session holds the most recently uploaded document, used as the
// fallback context for questions and as the only input for summaries.
package session

import (
	"sync"

	"pdf-rag/internal/models"
)

// Store is a single-slot document holder. Every upload overwrites it.
//
// The lock only protects the slot itself. An ask running while an upload is in
// flight may still read the new document together with the old index.
type Store struct {
	mu  sync.RWMutex
	doc models.Document
	set bool
}

func NewStore() *Store {
	return &Store{}
}

// Set replaces the held document.
func (s *Store) Set(doc models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.set = true
}

// Document returns the held document and whether one was ever uploaded.
func (s *Store) Document() (models.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, s.set
}

// Text returns the full text of the held document, or "" before any upload.
func (s *Store) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Text
}
