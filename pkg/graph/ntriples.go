package graph

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/knakk/rdf"
)

// ErrMalformedTriple is returned when the snapshot is not valid N-Triples.
var ErrMalformedTriple = errors.New("malformed triple")

// ReadNTriples loads N-Triples statements into a new store. Terms are kept
// in their N-Triples form, so IRIs are stored in angle brackets.
func ReadNTriples(input io.Reader) (*Store, error) {
	store := NewStore()
	decoder := rdf.NewTripleDecoder(input, rdf.NTriples)

	for statement := 1; ; statement++ {
		triple, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: statement %d: %v", ErrMalformedTriple, statement, err)
		}

		err = store.Add(
			triple.Subj.Serialize(rdf.NTriples),
			triple.Pred.Serialize(rdf.NTriples),
			triple.Obj.Serialize(rdf.NTriples),
		)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", statement, err)
		}
	}

	return store, nil
}

// LoadNTriplesFile reads an N-Triples file from disk.
func LoadNTriplesFile(path string) (*Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph: %w", err)
	}
	defer file.Close()

	store, err := ReadNTriples(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}
