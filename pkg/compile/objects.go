package compile

import (
	"strings"

	"github.com/coolbeans/rdfedits/pkg/expand"
)

// objectIRIs walks the triples of an expanded fragment and returns the IRIs
// standing in object position, in first-seen order. '.' starts a new
// subject, ';' a new predicate and ',' a new object; blank node property
// lists are followed one level at a time.
func objectIRIs(fragment string) []string {
	var iris []string
	position := 0
	var saved []int

	for _, term := range expand.Terms(fragment) {
		if term.Kind == expand.TermPunct {
			switch term.Text {
			case ".", "{", "}":
				position = 0
			case ";":
				position = 1
			case ",":
				position = 2
			case "[":
				saved = append(saved, position)
				position = 1
			case "]":
				if len(saved) > 0 {
					position = saved[len(saved)-1] + 1
					saved = saved[:len(saved)-1]
				}
			}
			continue
		}

		if position == 2 && term.Kind == expand.TermIRI {
			iris = appendUnique(iris, term.Text)
		}
		position++
	}

	return iris
}

func isIRI(term string) bool {
	return len(term) > 2 && strings.HasPrefix(term, "<") && strings.HasSuffix(term, ">")
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
