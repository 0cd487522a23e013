// Package table reads delimited edit tables: a prefix block, a header row
// and the data rows that follow it.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/coolbeans/rdfedits/pkg/prefix"
)

// ErrMalformedTable is returned when the input has no header row.
var ErrMalformedTable = errors.New("malformed table")

const (
	// DefaultDelimiter separates cells in the spreadsheet export.
	DefaultDelimiter = ';'

	// DefaultHeaderMarker is the first cell of the header row.
	DefaultHeaderMarker = "subject"

	// DefaultBlockLabel is the optional label row that opens the prefix block.
	DefaultBlockLabel = "prefixes"
)

// ReadOptions controls how the raw rows are split.
type ReadOptions struct {
	// Delimiter is the cell separator.
	Delimiter rune

	// HeaderMarker is the first-column value that marks the header row.
	HeaderMarker string

	// BlockLabel is a first-column value in the prefix block that is not a declaration.
	BlockLabel string
}

// DefaultReadOptions returns the options used by the spreadsheet exports.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		Delimiter:    DefaultDelimiter,
		HeaderMarker: DefaultHeaderMarker,
		BlockLabel:   DefaultBlockLabel,
	}
}

func (readOptions ReadOptions) withDefaults() ReadOptions {
	if readOptions.Delimiter == 0 {
		readOptions.Delimiter = DefaultDelimiter
	}
	if readOptions.HeaderMarker == "" {
		readOptions.HeaderMarker = DefaultHeaderMarker
	}
	if readOptions.BlockLabel == "" {
		readOptions.BlockLabel = DefaultBlockLabel
	}
	return readOptions
}

// RawRow is a data row as split by the reader, before any typing.
type RawRow struct {
	// Line is the 1-based line in the input where the row starts.
	Line  int
	Cells []string
}

// RawTable is the structural split of an edit table.
type RawTable struct {
	Prefixes []prefix.Binding
	Header   []string
	Rows     []RawRow
}

// Read splits delimited input into prefix declarations, the header row and
// the non-blank data rows after it.
func Read(input io.Reader, readOptions ReadOptions) (*RawTable, error) {
	readOptions = readOptions.withDefaults()

	reader := csv.NewReader(input)
	reader.Comma = readOptions.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rawTable := &RawTable{}
	headerFound := false

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading table: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if headerFound {
			if isBlank(record) {
				continue
			}
			rawTable.Rows = append(rawTable.Rows, RawRow{Line: line, Cells: record})
			continue
		}

		first := strings.TrimSpace(cellAt(record, 0))
		if first == readOptions.HeaderMarker {
			rawTable.Header = make([]string, len(record))
			for index, name := range record {
				rawTable.Header[index] = strings.TrimSpace(name)
			}
			headerFound = true
			continue
		}

		second := strings.TrimSpace(cellAt(record, 1))
		if first != "" && second != "" && first != readOptions.BlockLabel {
			rawTable.Prefixes = append(rawTable.Prefixes, prefix.Binding{
				Prefix:    strings.TrimSuffix(first, ":"),
				Namespace: second,
			})
		}
	}

	if !headerFound {
		return nil, fmt.Errorf("%w: no header row starting with %q found", ErrMalformedTable, readOptions.HeaderMarker)
	}

	return rawTable, nil
}

func cellAt(record []string, index int) string {
	if index < len(record) {
		return record[index]
	}
	return ""
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
