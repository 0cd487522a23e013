package expand

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coolbeans/rdfedits/pkg/prefix"
)

var (
	// ErrUnresolvableTerm is returned when a single-term cell is neither an
	// IRI nor a resolvable prefixed name.
	ErrUnresolvableTerm = errors.New("unresolvable term")

	// ErrUndeclaredPrefix is returned for prefixed names with an unknown
	// prefix when the expander runs with UndeclaredFail.
	ErrUndeclaredPrefix = errors.New("undeclared prefix")
)

// UndeclaredPolicy decides what happens to prefixed names in fragments and
// paths whose prefix cannot be resolved.
type UndeclaredPolicy string

const (
	// UndeclaredPassThrough leaves the prefixed name as written.
	UndeclaredPassThrough UndeclaredPolicy = "pass_through"

	// UndeclaredFail aborts expansion with ErrUndeclaredPrefix.
	UndeclaredFail UndeclaredPolicy = "fail"
)

// Valid reports whether the policy is one of the known values.
func (undeclaredPolicy UndeclaredPolicy) Valid() bool {
	return undeclaredPolicy == UndeclaredPassThrough || undeclaredPolicy == UndeclaredFail
}

const blankNodeSuffix = "[]"

// Options configures an Expander.
type Options struct {
	// Fallback is consulted when the declared prefixes and http(s) URIs do
	// not match. Nil means DefaultFallback().
	Fallback TermResolver

	// Undeclared is the policy for unresolved prefixed names.
	Undeclared UndeclaredPolicy
}

// Expander rewrites terms using a prefix registry plus a fallback resolver.
// It holds no mutable state and may be used from several goroutines.
type Expander struct {
	resolver   TermResolver
	names      TermResolver
	undeclared UndeclaredPolicy
}

// NewExpander creates an expander resolving against registry.
func NewExpander(registry *prefix.Registry, options Options) *Expander {
	fallback := options.Fallback
	if fallback == nil {
		fallback = DefaultFallback()
	}
	undeclared := options.Undeclared
	if undeclared == "" {
		undeclared = UndeclaredPassThrough
	}

	return &Expander{
		resolver: ChainResolver{
			PrefixResolver{Registry: registry},
			SchemeResolver{Schemes: []string{"http", "https"}},
			fallback,
		},
		names: ChainResolver{
			PrefixResolver{Registry: registry},
			withoutSchemes(fallback),
		},
		undeclared: undeclared,
	}
}

// ExpandTerm resolves a single token such as a subject cell to <iri>.
// Bracketed IRIs are returned unchanged.
func (expander *Expander) ExpandTerm(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if isBracketed(trimmed) {
		return trimmed, nil
	}
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty term", ErrUnresolvableTerm)
	}
	if iri, ok := expander.resolver.Resolve(trimmed); ok {
		return "<" + iri + ">", nil
	}
	return "", fmt.Errorf("%w: %q is not an IRI or known prefixed name", ErrUnresolvableTerm, trimmed)
}

// ExpandFragment replaces every prefixed name outside brackets and quotes
// with its bracketed IRI. Literals, IRIs and [] are kept verbatim, so
// expanding an expanded fragment is a no-op. Bare absolute URIs such as
// urn:x are not accepted here; in a fragment they read as prefixed names
// and fall under the undeclared-prefix policy.
func (expander *Expander) ExpandFragment(text string) (string, error) {
	if text == "" {
		return text, nil
	}

	var builder strings.Builder
	builder.Grow(len(text))

	for _, segment := range Scan(text) {
		if segment.Kind != SegmentPrefixedName {
			builder.WriteString(segment.Text)
			continue
		}

		iri, ok := expander.names.Resolve(segment.Text)
		if ok {
			builder.WriteString("<" + iri + ">")
			continue
		}
		if expander.undeclared == UndeclaredFail {
			return "", fmt.Errorf("%w: %q in %q", ErrUndeclaredPrefix, segment.Prefix, segment.Text)
		}
		builder.WriteString(segment.Text)
	}

	return builder.String(), nil
}

// ExpandPath expands a property path of '/'-separated steps. Each step is
// resolved as a single term when possible and otherwise expanded like a
// fragment, which covers ^inverse, modifiers and alternatives. A trailing
// " []" is kept and only the path before it is expanded.
func (expander *Expander) ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed, nil
	}

	if base, ok := cutBlankNodeSuffix(trimmed); ok {
		if base == "" {
			return blankNodeSuffix, nil
		}
		expandedBase, err := expander.ExpandPath(base)
		if err != nil {
			return "", err
		}
		return expandedBase + " " + blankNodeSuffix, nil
	}

	steps := splitPath(trimmed)
	expandedSteps := make([]string, 0, len(steps))
	for _, step := range steps {
		if term, err := expander.ExpandTerm(step); err == nil {
			expandedSteps = append(expandedSteps, term)
			continue
		}
		expandedStep, err := expander.ExpandFragment(step)
		if err != nil {
			return "", err
		}
		expandedSteps = append(expandedSteps, expandedStep)
	}

	return strings.Join(expandedSteps, "/"), nil
}

// cutBlankNodeSuffix splits "path []" into "path". The marker must be
// separated from the path by whitespace.
func cutBlankNodeSuffix(path string) (string, bool) {
	if path == blankNodeSuffix {
		return "", true
	}
	if !strings.HasSuffix(path, blankNodeSuffix) {
		return "", false
	}
	base := path[:len(path)-len(blankNodeSuffix)]
	if base == "" || (base[len(base)-1] != ' ' && base[len(base)-1] != '\t') {
		return "", false
	}
	return strings.TrimSpace(base), true
}

// splitPath splits on '/' outside of bracketed IRIs and quoted literals.
func splitPath(path string) []string {
	var steps []string
	var current strings.Builder

	for _, segment := range Scan(path) {
		if segment.Kind != SegmentText {
			current.WriteString(segment.Text)
			continue
		}
		parts := strings.Split(segment.Text, "/")
		for index, part := range parts {
			if index > 0 {
				steps = append(steps, current.String())
				current.Reset()
			}
			current.WriteString(part)
		}
	}
	steps = append(steps, current.String())

	for index, step := range steps {
		steps[index] = strings.TrimSpace(step)
	}
	return steps
}

func isBracketed(token string) bool {
	return len(token) >= 2 && token[0] == '<' && token[len(token)-1] == '>'
}
