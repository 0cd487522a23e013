// Package expand rewrites compact URIs (prefix:local) into bracketed IRIs
// inside subject cells, node paths and free SPARQL fragments.
//
// Fragments are scanned with a small state machine instead of a single
// pattern: text outside brackets and quotes is searched for prefixed names,
// while bracketed IRIs, quoted literals and the blank node marker [] are
// passed through untouched. This keeps expansion idempotent.
package expand

import "strings"

// SegmentKind classifies a run of fragment text.
type SegmentKind int

const (
	// SegmentText is text outside of any protected construct.
	SegmentText SegmentKind = iota

	// SegmentIRI is a bracketed IRI such as <http://example.org/a>.
	SegmentIRI

	// SegmentLiteral is a quoted literal, including long (triple-quoted) forms.
	SegmentLiteral

	// SegmentBlankNode is the empty blank node marker [].
	SegmentBlankNode

	// SegmentPrefixedName is a prefix:local candidate found in text.
	SegmentPrefixedName
)

func (segmentKind SegmentKind) String() string {
	switch segmentKind {
	case SegmentText:
		return "text"
	case SegmentIRI:
		return "iri"
	case SegmentLiteral:
		return "literal"
	case SegmentBlankNode:
		return "blank"
	case SegmentPrefixedName:
		return "prefixed-name"
	}
	return "unknown"
}

// Segment is one run of scanned text. Prefix and Local are set for
// SegmentPrefixedName only.
type Segment struct {
	Kind   SegmentKind
	Text   string
	Prefix string
	Local  string
}

// Scan splits text into segments. Concatenating the Text of all segments
// reproduces the input exactly.
func Scan(text string) []Segment {
	var segments []Segment
	textStart := 0
	position := 0

	flush := func() {
		if position > textStart {
			segments = append(segments, Segment{Kind: SegmentText, Text: text[textStart:position]})
		}
	}
	emit := func(segment Segment, end int) {
		flush()
		segments = append(segments, segment)
		position = end
		textStart = end
	}

	for position < len(text) {
		ch := text[position]

		switch {
		case ch == '<':
			if end := iriEnd(text, position); end > 0 {
				emit(Segment{Kind: SegmentIRI, Text: text[position:end]}, end)
				continue
			}

		case ch == '"' || ch == '\'':
			end := literalEnd(text, position)
			emit(Segment{Kind: SegmentLiteral, Text: text[position:end]}, end)
			continue

		case ch == '[':
			if end := blankMarkerEnd(text, position); end > 0 {
				emit(Segment{Kind: SegmentBlankNode, Text: text[position:end]}, end)
				continue
			}

		case isPrefixStart(ch) && (position == 0 || !isWordByte(text[position-1])):
			if prefixName, local, end, ok := prefixedNameAt(text, position); ok {
				emit(Segment{
					Kind:   SegmentPrefixedName,
					Text:   text[position:end],
					Prefix: prefixName,
					Local:  local,
				}, end)
				continue
			}
			position = runEnd(text, position)
			continue
		}

		position++
	}

	flush()
	return segments
}

// iriEnd returns the index just past the closing '>' of an IRI starting at
// start, or 0 when the '<' does not open an IRI (a comparison operator, for
// instance).
func iriEnd(text string, start int) int {
	for index := start + 1; index < len(text); index++ {
		ch := text[index]
		if ch == '>' {
			return index + 1
		}
		if ch <= ' ' || strings.IndexByte("<\"{}|^`\\", ch) >= 0 {
			return 0
		}
	}
	return 0
}

// literalEnd returns the index just past the closing quote of a literal
// opened at start. An unterminated literal runs to the end of text.
func literalEnd(text string, start int) int {
	quote := text[start]
	long := strings.Repeat(string(quote), 3)

	if strings.HasPrefix(text[start:], long) {
		for index := start + 3; index < len(text); index++ {
			if text[index] == '\\' {
				index++
				continue
			}
			if strings.HasPrefix(text[index:], long) {
				return index + 3
			}
		}
		return len(text)
	}

	for index := start + 1; index < len(text); index++ {
		switch text[index] {
		case '\\':
			index++
		case quote:
			return index + 1
		}
	}
	return len(text)
}

// blankMarkerEnd matches '[' optional blanks ']' and returns the index past ']'.
func blankMarkerEnd(text string, start int) int {
	for index := start + 1; index < len(text); index++ {
		switch text[index] {
		case ']':
			return index + 1
		case ' ', '\t':
			continue
		default:
			return 0
		}
	}
	return 0
}

// prefixedNameAt matches prefix ':' local at start. The local part may begin
// with a digit; trailing '.' and '-' are not part of it. Blank node labels
// (_:b) and chains with a second colon (urn:isbn:1) are not prefixed names.
func prefixedNameAt(text string, start int) (string, string, int, bool) {
	index := start + 1
	for index < len(text) && isPrefixByte(text[index]) {
		index++
	}
	if index >= len(text) || text[index] != ':' {
		return "", "", 0, false
	}
	prefixName := text[start:index]
	if prefixName == "_" {
		return "", "", 0, false
	}

	localStart := index + 1
	if localStart >= len(text) || !isLocalStart(text[localStart]) {
		return "", "", 0, false
	}
	localEnd := localStart + 1
	for localEnd < len(text) && isLocalByte(text[localEnd]) {
		localEnd++
	}
	for localEnd > localStart && (text[localEnd-1] == '.' || text[localEnd-1] == '-') {
		localEnd--
	}
	if localEnd < len(text) && text[localEnd] == ':' {
		return "", "", 0, false
	}

	return prefixName, text[localStart:localEnd], localEnd, true
}

// runEnd skips a run of name characters, colons included, so that the tail
// of a rejected candidate is never re-matched on its own.
func runEnd(text string, start int) int {
	index := start
	for index < len(text) && (isLocalByte(text[index]) || text[index] == ':') {
		index++
	}
	if index == start {
		return start + 1
	}
	return index
}

func isPrefixStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isWordByte(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch >= 0x80
}

func isPrefixByte(ch byte) bool {
	return isWordByte(ch) || ch == '-'
}

func isLocalStart(ch byte) bool {
	return isWordByte(ch)
}

func isLocalByte(ch byte) bool {
	return isWordByte(ch) || ch == '-' || ch == '.'
}

// SplitPrefixedName splits a whole token of the form prefix:local.
func SplitPrefixedName(token string) (string, string, bool) {
	if token == "" || !isPrefixStart(token[0]) {
		return "", "", false
	}
	colon := strings.IndexByte(token, ':')
	if colon <= 0 || colon == len(token)-1 {
		return "", "", false
	}
	prefixName, local := token[:colon], token[colon+1:]
	for index := 1; index < len(prefixName); index++ {
		if !isPrefixByte(prefixName[index]) {
			return "", "", false
		}
	}
	if !isLocalStart(local[0]) {
		return "", "", false
	}
	for index := 1; index < len(local); index++ {
		if !isLocalByte(local[index]) {
			return "", "", false
		}
	}
	return prefixName, local, true
}
