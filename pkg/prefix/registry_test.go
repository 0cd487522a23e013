package prefix

import (
	"errors"
	"testing"
)

func TestRegistry_Bind(t *testing.T) {
	testCases := []struct {
		name      string
		prefix    string
		namespace string
		lookup    string
		expected  string
	}{
		{"trailing_colon", "ex:", "http://example.org/", "ex", "http://example.org/"},
		{"no_colon", "ldto", "https://data.razu.nl/def/ldto/", "ldto", "https://data.razu.nl/def/ldto/"},
		{"whitespace", "  schema: ", " http://schema.org/ ", "schema", "http://schema.org/"},
		{"bracketed_namespace", "ex", "<http://example.org/>", "ex", "http://example.org/"},
		{"lookup_with_colon", "ex", "http://example.org/", "ex:", "http://example.org/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			registry := NewRegistry(DuplicateLastWins)
			if err := registry.Bind(tc.prefix, tc.namespace); err != nil {
				t.Fatalf("Bind() error = %v", err)
			}
			got, ok := registry.Resolve(tc.lookup)
			if !ok {
				t.Fatalf("Resolve(%q) not found", tc.lookup)
			}
			if got != tc.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tc.lookup, got, tc.expected)
			}
		})
	}
}

func TestRegistry_BindEmpty(t *testing.T) {
	registry := NewRegistry("")
	if err := registry.Bind(":", "http://example.org/"); err == nil {
		t.Error("expected error for empty prefix")
	}
	if err := registry.Bind("ex", "  "); err == nil {
		t.Error("expected error for empty namespace")
	}
}

func TestRegistry_DuplicateLastWins(t *testing.T) {
	registry := NewRegistry(DuplicateLastWins)
	err := registry.BindAll([]Binding{
		{Prefix: "ex:", Namespace: "http://one.example/"},
		{Prefix: "other:", Namespace: "http://other.example/"},
		{Prefix: "ex", Namespace: "http://two.example/"},
	})
	if err != nil {
		t.Fatalf("BindAll() error = %v", err)
	}

	if got, _ := registry.Resolve("ex"); got != "http://two.example/" {
		t.Errorf("Resolve(ex) = %q, want the later declaration", got)
	}
	if registry.Len() != 2 {
		t.Errorf("Len() = %d, want 2", registry.Len())
	}

	bindings := registry.Bindings()
	if len(bindings) != 2 || bindings[0].Prefix != "ex" || bindings[1].Prefix != "other" {
		t.Errorf("Bindings() order = %+v, want ex then other", bindings)
	}
}

func TestRegistry_DuplicateReject(t *testing.T) {
	registry := NewRegistry(DuplicateReject)
	err := registry.BindAll([]Binding{
		{Prefix: "ex:", Namespace: "http://one.example/"},
		{Prefix: "ex:", Namespace: "http://two.example/"},
	})
	if !errors.Is(err, ErrDuplicatePrefix) {
		t.Fatalf("BindAll() error = %v, want ErrDuplicatePrefix", err)
	}
}

func TestRegistry_ResolveMissing(t *testing.T) {
	registry := NewRegistry(DuplicateLastWins)
	if _, ok := registry.Resolve("nope"); ok {
		t.Error("Resolve(nope) found a binding in an empty registry")
	}
}

func TestDuplicatePolicy_Valid(t *testing.T) {
	if !DuplicateLastWins.Valid() || !DuplicateReject.Valid() {
		t.Error("known policies reported invalid")
	}
	if DuplicatePolicy("first_wins").Valid() {
		t.Error("unknown policy reported valid")
	}
}
