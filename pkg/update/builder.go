// Package update assembles SPARQL UPDATE text from expanded edit rows. It is
// a text assembler only; the output is not validated.
package update

import (
	"strings"

	"github.com/coolbeans/rdfedits/pkg/polist"
	"github.com/coolbeans/rdfedits/pkg/prefix"
)

// NodeVariable is the variable bound to the node reached by a node path.
const NodeVariable = "?node"

// Statement renders one compiled update.
type Statement interface {
	Build() string
}

// TriplePatternStatement edits predicate-object pairs on the node reached
// from Subject by NodePath. Filter pairs further constrain that node.
type TriplePatternStatement struct {
	Subject  string
	NodePath string
	Filter   []polist.Pair
	Delete   []polist.Pair
	Insert   []polist.Pair
}

// Build renders DELETE and INSERT blocks only when they have pairs; the
// WHERE block is always present.
func (statement TriplePatternStatement) Build() string {
	var lines []string

	if len(statement.Delete) > 0 {
		lines = append(lines, "DELETE {")
		lines = appendNodePairs(lines, statement.Delete)
		lines = append(lines, "}")
	}

	if len(statement.Insert) > 0 {
		lines = append(lines, "INSERT {")
		lines = appendNodePairs(lines, statement.Insert)
		lines = append(lines, "}")
	}

	lines = append(lines, "WHERE {")
	lines = append(lines, "  "+statement.Subject+" "+statement.NodePath+" "+NodeVariable+" .")
	lines = appendNodePairs(lines, statement.Filter)
	lines = append(lines, "}")

	return strings.Join(lines, "\n")
}

func appendNodePairs(lines []string, pairs []polist.Pair) []string {
	for _, pair := range pairs {
		lines = append(lines, "  "+NodeVariable+" "+pair.Predicate+" "+pair.Object+" .")
	}
	return lines
}

// FragmentStatement splices free fragments around a VALUES binding of ?s.
type FragmentStatement struct {
	Subject string
	Where   string
	Delete  string
	Insert  string
}

// Build renders DELETE and INSERT only for non-empty fragments and ends the
// statement with ';'.
func (statement FragmentStatement) Build() string {
	var lines []string

	if deleteFragment := strings.TrimSpace(statement.Delete); deleteFragment != "" {
		lines = append(lines, "DELETE { "+deleteFragment+" }")
	}
	if insertFragment := strings.TrimSpace(statement.Insert); insertFragment != "" {
		lines = append(lines, "INSERT { "+insertFragment+" }")
	}

	lines = append(lines, "WHERE {")
	lines = append(lines, "  VALUES ?s { "+statement.Subject+" }")
	if whereFragment := strings.TrimSpace(statement.Where); whereFragment != "" {
		lines = append(lines, "  "+whereFragment)
	}
	lines = append(lines, "};")

	return strings.Join(lines, "\n")
}

// PrefixLines renders PREFIX declarations for standalone execution. Bare
// namespaces are wrapped in angle brackets.
func PrefixLines(bindings []prefix.Binding) []string {
	lines := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		namespace := binding.Namespace
		if !(strings.HasPrefix(namespace, "<") && strings.HasSuffix(namespace, ">")) {
			namespace = "<" + namespace + ">"
		}
		lines = append(lines, "PREFIX "+strings.TrimSuffix(binding.Prefix, ":")+": "+namespace)
	}
	return lines
}

// Render joins statements with a blank line in between. When bindings is
// non-empty every statement is preceded by its PREFIX lines.
func Render(statements []string, bindings []prefix.Binding) string {
	header := strings.Join(PrefixLines(bindings), "\n")

	var builder strings.Builder
	for index, statement := range statements {
		if index > 0 {
			builder.WriteString("\n\n")
		}
		if header != "" {
			builder.WriteString(header)
			builder.WriteString("\n")
		}
		builder.WriteString(statement)
	}
	if len(statements) > 0 {
		builder.WriteString("\n")
	}
	return builder.String()
}
