package table

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/coolbeans/rdfedits/pkg/prefix"
)

// ErrMissingColumn is wrapped by MissingColumnError.
var ErrMissingColumn = errors.New("missing column")

// Column names recognised in the header row.
const (
	ColumnSubject    = "subject"
	ColumnNodePath   = "node_path"
	ColumnNodeFilter = "optional_node_filter"
	ColumnWhere      = "where"
	ColumnDelete     = "delete"
	ColumnInsert     = "insert"
)

// Mode selects the row schema of a table.
type Mode string

const (
	// ModeAuto picks ModeFragment when the header has a where column, else ModeTriplePattern.
	ModeAuto Mode = "auto"

	// ModeTriplePattern rows carry a node path and predicate-object lists.
	ModeTriplePattern Mode = "triple"

	// ModeFragment rows carry free SPARQL fragments.
	ModeFragment Mode = "fragment"
)

// Valid reports whether the mode is one of the known values.
func (mode Mode) Valid() bool {
	switch mode {
	case ModeAuto, ModeTriplePattern, ModeFragment:
		return true
	}
	return false
}

// RequiredColumns returns the header columns a mode needs.
func (mode Mode) RequiredColumns() []string {
	switch mode {
	case ModeTriplePattern:
		return []string{ColumnSubject, ColumnNodePath, ColumnNodeFilter, ColumnDelete, ColumnInsert}
	case ModeFragment:
		return []string{ColumnSubject, ColumnWhere, ColumnDelete, ColumnInsert}
	}
	return nil
}

// MissingColumnError names the required column absent from the header.
type MissingColumnError struct {
	Column string
	Mode   Mode
}

func (missingColumnError *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q missing in header for %s mode", missingColumnError.Column, missingColumnError.Mode)
}

func (missingColumnError *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// EditRow is one typed data row. It is either a TriplePatternRow or a FragmentRow.
type EditRow interface {
	// Position is the input line of the row.
	Position() int

	// SubjectCell is the raw subject cell.
	SubjectCell() string

	isEditRow()
}

// TriplePatternRow addresses a node reached from the subject by a path and
// edits predicate-object pairs on it.
type TriplePatternRow struct {
	Line       int
	Subject    string
	NodePath   string
	NodeFilter string
	Delete     string
	Insert     string
}

func (row TriplePatternRow) Position() int { return row.Line }
func (row TriplePatternRow) SubjectCell() string { return row.Subject }
func (TriplePatternRow) isEditRow() {}

// FragmentRow carries SPARQL fragments bound to ?s.
type FragmentRow struct {
	Line    int
	Subject string
	Where   string
	Delete  string
	Insert  string
}

func (row FragmentRow) Position() int { return row.Line }
func (row FragmentRow) SubjectCell() string { return row.Subject }
func (FragmentRow) isEditRow() {}

// Table is a loaded edit table.
type Table struct {
	Mode     Mode
	Prefixes []prefix.Binding
	Header   []string
	Rows     []EditRow
}

// Options combines read options with the requested row mode.
type Options struct {
	ReadOptions
	Mode Mode
}

// Load reads and types an edit table.
func Load(input io.Reader, options Options) (*Table, error) {
	rawTable, err := Read(input, options.ReadOptions)
	if err != nil {
		return nil, err
	}
	return Build(rawTable, options.Mode)
}

// Build types the rows of a raw table under the given mode.
func Build(rawTable *RawTable, mode Mode) (*Table, error) {
	if mode == "" {
		mode = ModeAuto
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown row mode %q", mode)
	}

	columnIndex := make(map[string]int, len(rawTable.Header))
	for index, name := range rawTable.Header {
		if _, seen := columnIndex[name]; !seen {
			columnIndex[name] = index
		}
	}

	if mode == ModeAuto {
		mode = ModeTriplePattern
		if _, ok := columnIndex[ColumnWhere]; ok {
			mode = ModeFragment
		}
	}

	for _, column := range mode.RequiredColumns() {
		if _, ok := columnIndex[column]; !ok {
			return nil, &MissingColumnError{Column: column, Mode: mode}
		}
	}

	loaded := &Table{
		Mode:     mode,
		Prefixes: rawTable.Prefixes,
		Header:   rawTable.Header,
		Rows:     make([]EditRow, 0, len(rawTable.Rows)),
	}

	for _, rawRow := range rawTable.Rows {
		cell := func(name string) string {
			return strings.TrimSpace(cellAt(rawRow.Cells, columnIndex[name]))
		}

		if mode == ModeFragment {
			loaded.Rows = append(loaded.Rows, FragmentRow{
				Line:    rawRow.Line,
				Subject: cell(ColumnSubject),
				Where:   cell(ColumnWhere),
				Delete:  cell(ColumnDelete),
				Insert:  cell(ColumnInsert),
			})
			continue
		}

		loaded.Rows = append(loaded.Rows, TriplePatternRow{
			Line:       rawRow.Line,
			Subject:    cell(ColumnSubject),
			NodePath:   cell(ColumnNodePath),
			NodeFilter: cell(ColumnNodeFilter),
			Delete:     cell(ColumnDelete),
			Insert:     cell(ColumnInsert),
		})
	}

	return loaded, nil
}

// RowBySubject returns the first row whose subject cell equals subject.
func (loaded *Table) RowBySubject(subject string) (EditRow, bool) {
	subject = strings.TrimSpace(subject)
	for _, row := range loaded.Rows {
		if row.SubjectCell() == subject {
			return row, true
		}
	}
	return nil, false
}
