// Package graph holds a local snapshot of target triples, used to answer
// existence questions without a SPARQL endpoint.
package graph

import (
	"errors"
	"sync"
)

// Store is an in-memory triple index with two lookups:
//   - SPO: Subject -> Predicate -> Object (facts about a subject)
//   - OSP: Object -> Subject -> Predicate (who points at an object)
type Store struct {
	mu sync.RWMutex

	spo map[string]map[string]map[string]bool
	osp map[string]map[string]map[string]bool

	count int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		spo: make(map[string]map[string]map[string]bool),
		osp: make(map[string]map[string]map[string]bool),
	}
}

// Add inserts a triple given in N-Triples term form. Adding an existing
// triple is a no-op.
func (s *Store) Add(subject, predicate, object string) error {
	if subject == "" || predicate == "" || object == "" {
		return errors.New("triple components cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.existsUnsafe(subject, predicate, object) {
		return nil
	}

	if s.spo[subject] == nil {
		s.spo[subject] = make(map[string]map[string]bool)
	}
	if s.spo[subject][predicate] == nil {
		s.spo[subject][predicate] = make(map[string]bool)
	}
	s.spo[subject][predicate][object] = true

	if s.osp[object] == nil {
		s.osp[object] = make(map[string]map[string]bool)
	}
	if s.osp[object][subject] == nil {
		s.osp[object][subject] = make(map[string]bool)
	}
	s.osp[object][subject][predicate] = true

	s.count++
	return nil
}

// Mentions reports whether term occurs as subject or object of any triple.
func (s *Store) Mentions(term string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.spo[term]) > 0 || len(s.osp[term]) > 0
}

// Count returns the number of triples.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Store) existsUnsafe(subject, predicate, object string) bool {
	if predicates, ok := s.spo[subject]; ok {
		if objects, ok := predicates[predicate]; ok {
			return objects[object]
		}
	}
	return false
}
