package graph

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const snapshot = `# archive snapshot
<http://example.org/a> <http://example.org/p> <http://example.org/b> .
<http://example.org/a> <http://example.org/label> "a . b"@en .
<http://example.org/e> <http://example.org/p> <http://example.org/c> . # trailing note

<http://example.org/a> <http://example.org/p> <http://example.org/b> .
<http://example.org/d> <http://example.org/size> "3"^^<http://www.w3.org/2001/XMLSchema#integer> .
`

func TestReadNTriples(t *testing.T) {
	store, err := ReadNTriples(strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("ReadNTriples() error = %v", err)
	}

	if store.Count() != 4 {
		t.Errorf("Count() = %d, want 4 (duplicate collapsed)", store.Count())
	}
}

func TestReadNTriples_TrailingComment(t *testing.T) {
	store, err := ReadNTriples(strings.NewReader(
		"<http://example.org/s> <http://example.org/p> <http://example.org/o> . # note\n"))
	if err != nil {
		t.Fatalf("ReadNTriples() error = %v", err)
	}
	if !store.Mentions("<http://example.org/o>") {
		t.Error("triple followed by a comment was not stored")
	}
}

func TestStore_Mentions(t *testing.T) {
	store, err := ReadNTriples(strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("ReadNTriples() error = %v", err)
	}

	testCases := []struct {
		name     string
		term     string
		expected bool
	}{
		{"subject", "<http://example.org/a>", true},
		{"object", "<http://example.org/c>", true},
		{"typed_literal_subject", "<http://example.org/d>", true},
		{"predicate_only", "<http://example.org/p>", false},
		{"absent", "<http://example.org/zz>", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := store.Mentions(tc.term); got != tc.expected {
				t.Errorf("Mentions(%q) = %v, want %v", tc.term, got, tc.expected)
			}
		})
	}
}

func TestReadNTriples_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		line string
	}{
		{"missing_dot", "<http://example.org/a> <http://example.org/p> <http://example.org/b>"},
		{"two_terms", "<http://example.org/a> <http://example.org/p> ."},
		{"literal_subject", `"x" <http://example.org/p> <http://example.org/b> .`},
		{"word_predicate", "<http://example.org/a> p <http://example.org/b> ."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadNTriples(strings.NewReader("\n" + tc.line + "\n"))
			if !errors.Is(err, ErrMalformedTriple) {
				t.Fatalf("ReadNTriples() error = %v, want ErrMalformedTriple", err)
			}
		})
	}
}

func TestLoadNTriplesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.nt")
	if err := os.WriteFile(path, []byte(snapshot), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store, err := LoadNTriplesFile(path)
	if err != nil {
		t.Fatalf("LoadNTriplesFile() error = %v", err)
	}
	if !store.Mentions("<http://example.org/b>") {
		t.Error("loaded store misses an object")
	}

	if _, err := LoadNTriplesFile(filepath.Join(t.TempDir(), "absent.nt")); err == nil {
		t.Error("LoadNTriplesFile() of a missing file should fail")
	}
}

func TestStore_AddEmpty(t *testing.T) {
	if err := NewStore().Add("<s>", "", "<o>"); err == nil {
		t.Error("Add() with an empty predicate should fail")
	}
}
