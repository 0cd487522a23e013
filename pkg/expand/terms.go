package expand

import "strings"

// TermKind classifies a token of a SPARQL fragment.
type TermKind int

const (
	// TermWord is any other token: variables, numbers, keywords, blank node labels.
	TermWord TermKind = iota

	// TermIRI is a bracketed IRI.
	TermIRI

	// TermPrefixedName is a prefix:local name, resolved or not.
	TermPrefixedName

	// TermLiteral is a quoted literal with its language tag or datatype.
	TermLiteral

	// TermBlankNode is the empty blank node marker [].
	TermBlankNode

	// TermPunct is one of . ; , { } ( ) [ ].
	TermPunct
)

// Term is one token of a fragment. Literal terms include a trailing
// language tag or datatype.
type Term struct {
	Kind TermKind
	Text string
}

const punctuation = ".;,{}()[]"

// Terms tokenizes a fragment into terms and punctuation. Whitespace is dropped.
func Terms(text string) []Term {
	segments := Scan(text)
	var terms []Term

	for index := 0; index < len(segments); index++ {
		segment := segments[index]

		switch segment.Kind {
		case SegmentIRI:
			terms = append(terms, Term{Kind: TermIRI, Text: segment.Text})

		case SegmentPrefixedName:
			terms = append(terms, Term{Kind: TermPrefixedName, Text: segment.Text})

		case SegmentBlankNode:
			terms = append(terms, Term{Kind: TermBlankNode, Text: segment.Text})

		case SegmentLiteral:
			literal := segment.Text
			if index+1 < len(segments) && segments[index+1].Kind == SegmentText {
				next := segments[index+1].Text
				switch {
				case strings.HasPrefix(next, "@"):
					end := 1
					for end < len(next) && (isWordByte(next[end]) || next[end] == '-') {
						end++
					}
					literal += next[:end]
					segments[index+1].Text = next[end:]
				case next == "^^" && index+2 < len(segments) &&
					(segments[index+2].Kind == SegmentIRI || segments[index+2].Kind == SegmentPrefixedName):
					literal += next + segments[index+2].Text
					index += 2
				}
			}
			terms = append(terms, Term{Kind: TermLiteral, Text: literal})

		case SegmentText:
			terms = append(terms, splitText(segment.Text)...)
		}
	}

	return terms
}

func splitText(text string) []Term {
	var terms []Term
	wordStart := -1

	endWord := func(end int) {
		if wordStart >= 0 {
			terms = append(terms, Term{Kind: TermWord, Text: text[wordStart:end]})
			wordStart = -1
		}
	}

	for index := 0; index < len(text); index++ {
		ch := text[index]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			endWord(index)
		case strings.IndexByte(punctuation, ch) >= 0 && !isDecimalPoint(text, index):
			endWord(index)
			terms = append(terms, Term{Kind: TermPunct, Text: string(ch)})
		default:
			if wordStart < 0 {
				wordStart = index
			}
		}
	}
	endWord(len(text))

	return terms
}

func isDecimalPoint(text string, index int) bool {
	return text[index] == '.' &&
		index > 0 && text[index-1] >= '0' && text[index-1] <= '9' &&
		index+1 < len(text) && text[index+1] >= '0' && text[index+1] <= '9'
}
