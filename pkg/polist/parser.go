// Package polist parses semicolon-separated predicate-object lists such as
// "ex:p1 ex:o1 ; ex:p2 'literal'".
package polist

import (
	"strings"
	"unicode"

	"github.com/coolbeans/rdfedits/pkg/expand"
)

// LiteralPolicy decides how semicolons inside quoted literals are treated.
type LiteralPolicy string

const (
	// LiteralQuoteAware only splits on semicolons outside literals and IRIs.
	LiteralQuoteAware LiteralPolicy = "quote_aware"

	// LiteralNaive splits on every semicolon, like the spreadsheet macros did.
	// A literal containing ';' is split apart.
	LiteralNaive LiteralPolicy = "naive"
)

// Valid reports whether the policy is one of the known values.
func (literalPolicy LiteralPolicy) Valid() bool {
	return literalPolicy == LiteralQuoteAware || literalPolicy == LiteralNaive
}

// Pair is one predicate and its object, in source order.
type Pair struct {
	Predicate string
	Object    string
}

// Parser splits predicate-object lists.
type Parser struct {
	Policy LiteralPolicy
}

// Parse splits text with the quote-aware policy.
func Parse(text string) []Pair {
	return Parser{Policy: LiteralQuoteAware}.Parse(text)
}

// Parse returns the pairs of text. Empty input yields no pairs.
func (parser Parser) Parse(text string) []Pair {
	pairs, _ := parser.ParseWithDropped(text)
	return pairs
}

// ParseWithDropped also returns the parts that were dropped because no
// object followed the predicate, so callers can log them.
func (parser Parser) ParseWithDropped(text string) ([]Pair, []string) {
	return parser.ParseUnwrapped(StripOuterQuotes(text))
}

// ParseUnwrapped is ParseWithDropped for text whose outer quotes were
// already removed with StripOuterQuotes.
func (parser Parser) ParseUnwrapped(text string) ([]Pair, []string) {
	body := strings.TrimSpace(text)
	if body == "" {
		return nil, nil
	}

	var parts []string
	if parser.Policy == LiteralNaive {
		parts = strings.Split(body, ";")
	} else {
		parts = splitOutsideQuotes(body)
	}

	var pairs []Pair
	var dropped []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pair, ok := splitPair(part)
		if !ok {
			dropped = append(dropped, part)
			continue
		}
		pairs = append(pairs, pair)
	}

	return pairs, dropped
}

// StripOuterQuotes removes one pair of matching quotes wrapping the whole
// field, left over from the table encoding. Prefixed names inside such a
// field are only visible to expansion after this step.
func StripOuterQuotes(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '"' || first == '\'') && first == last {
			return strings.TrimSpace(text[1 : len(text)-1])
		}
	}
	return text
}

func splitOutsideQuotes(text string) []string {
	var parts []string
	var current strings.Builder

	for _, segment := range expand.Scan(text) {
		if segment.Kind != expand.SegmentText {
			current.WriteString(segment.Text)
			continue
		}
		pieces := strings.Split(segment.Text, ";")
		for index, piece := range pieces {
			if index > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			current.WriteString(piece)
		}
	}
	parts = append(parts, current.String())

	return parts
}

// splitPair separates the predicate from the object. A bracketed predicate
// ends at its first '>'; any other predicate ends at the first whitespace.
func splitPair(part string) (Pair, bool) {
	var predicate, object string

	if strings.HasPrefix(part, "<") && strings.Contains(part[1:], ">") {
		end := strings.IndexByte(part, '>')
		predicate = part[:end+1]
		object = part[end+1:]
	} else {
		space := strings.IndexFunc(part, unicode.IsSpace)
		if space < 0 {
			return Pair{}, false
		}
		predicate = part[:space]
		object = part[space:]
	}

	predicate = strings.TrimSpace(predicate)
	object = strings.TrimSpace(object)
	if predicate == "" || object == "" {
		return Pair{}, false
	}
	return Pair{Predicate: predicate, Object: object}, true
}
