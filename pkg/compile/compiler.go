// Package compile turns a loaded edit table into SPARQL UPDATE statements,
// one per data row, in table order.
package compile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/coolbeans/rdfedits/pkg/expand"
	"github.com/coolbeans/rdfedits/pkg/polist"
	"github.com/coolbeans/rdfedits/pkg/prefix"
	"github.com/coolbeans/rdfedits/pkg/table"
	"github.com/coolbeans/rdfedits/pkg/update"
)

// RowFailurePolicy decides what a resolution error in one row does to the run.
type RowFailurePolicy string

const (
	// RowAbort stops compilation at the first failing row.
	RowAbort RowFailurePolicy = "abort"

	// RowSkip records the error on the row's Result and continues.
	RowSkip RowFailurePolicy = "skip"
)

// Valid reports whether the policy is one of the known values.
func (rowFailurePolicy RowFailurePolicy) Valid() bool {
	return rowFailurePolicy == RowAbort || rowFailurePolicy == RowSkip
}

// RowError ties a row-level failure to its input line.
type RowError struct {
	Line    int
	Subject string
	Err     error
}

func (rowError *RowError) Error() string {
	return fmt.Sprintf("line %d (subject %q): %v", rowError.Line, rowError.Subject, rowError.Err)
}

func (rowError *RowError) Unwrap() error {
	return rowError.Err
}

// Options configures a Compiler. Zero values select the defaults.
type Options struct {
	DuplicatePrefix  prefix.DuplicatePolicy
	UndeclaredPrefix expand.UndeclaredPolicy
	RowFailure       RowFailurePolicy
	Literals         polist.LiteralPolicy

	// Fallback resolves terms the declared prefixes cannot.
	Fallback expand.TermResolver

	// Workers compiles rows concurrently when greater than one. Output
	// order is always table order.
	Workers int

	// Logger receives diagnostics such as dropped predicate-object parts.
	Logger *log.Logger
}

func (options Options) withDefaults() Options {
	if options.DuplicatePrefix == "" {
		options.DuplicatePrefix = prefix.DuplicateLastWins
	}
	if options.UndeclaredPrefix == "" {
		options.UndeclaredPrefix = expand.UndeclaredPassThrough
	}
	if options.RowFailure == "" {
		options.RowFailure = RowAbort
	}
	if options.Literals == "" {
		options.Literals = polist.LiteralQuoteAware
	}
	if options.Workers < 1 {
		options.Workers = 1
	}
	if options.Logger == nil {
		options.Logger = log.New(io.Discard, "", 0)
	}
	return options
}

// Result is the outcome for one row.
type Result struct {
	Line int

	// Subject is the expanded subject IRI.
	Subject string

	// Statement is the compiled update text. Empty when Err is set.
	Statement string

	// InsertObjects are the IRIs in object position of the inserted triples.
	InsertObjects []string

	// Dropped lists predicate-object parts that had no object.
	Dropped []string

	// Err is set for rows skipped under RowSkip.
	Err error
}

// Compiler compiles rows against one prefix registry. The registry is
// read-only after New, so CompileRow may be called concurrently.
type Compiler struct {
	registry *prefix.Registry
	expander *expand.Expander
	parser   polist.Parser
	options  Options
}

// New binds the prefix declarations and prepares the expander.
func New(bindings []prefix.Binding, options Options) (*Compiler, error) {
	options = options.withDefaults()

	registry := prefix.NewRegistry(options.DuplicatePrefix)
	if err := registry.BindAll(bindings); err != nil {
		return nil, fmt.Errorf("binding prefixes: %w", err)
	}

	return &Compiler{
		registry: registry,
		expander: expand.NewExpander(registry, expand.Options{
			Fallback:   options.Fallback,
			Undeclared: options.UndeclaredPrefix,
		}),
		parser:  polist.Parser{Policy: options.Literals},
		options: options,
	}, nil
}

// Registry returns the bound prefixes.
func (compiler *Compiler) Registry() *prefix.Registry {
	return compiler.registry
}

// CompileRow expands and assembles a single row.
func (compiler *Compiler) CompileRow(row table.EditRow) (Result, error) {
	result := Result{Line: row.Position()}

	subject, err := compiler.expander.ExpandTerm(row.SubjectCell())
	if err != nil {
		return result, &RowError{Line: row.Position(), Subject: row.SubjectCell(), Err: err}
	}
	result.Subject = subject

	var statement update.Statement
	switch typed := row.(type) {
	case table.TriplePatternRow:
		statement, err = compiler.triplePattern(typed, subject, &result)
	case table.FragmentRow:
		statement, err = compiler.fragment(typed, subject, &result)
	default:
		err = fmt.Errorf("unsupported row type %T", row)
	}
	if err != nil {
		return result, &RowError{Line: row.Position(), Subject: row.SubjectCell(), Err: err}
	}

	for _, part := range result.Dropped {
		compiler.options.Logger.Printf("line %d: dropped predicate-object part without object: %q", result.Line, part)
	}

	result.Statement = statement.Build()
	return result, nil
}

func (compiler *Compiler) triplePattern(row table.TriplePatternRow, subject string, result *Result) (update.Statement, error) {
	nodePath, err := compiler.expander.ExpandPath(row.NodePath)
	if err != nil {
		return nil, fmt.Errorf("node_path: %w", err)
	}

	filter, err := compiler.pairs("optional_node_filter", row.NodeFilter, result)
	if err != nil {
		return nil, err
	}
	deletes, err := compiler.pairs("delete", row.Delete, result)
	if err != nil {
		return nil, err
	}
	inserts, err := compiler.pairs("insert", row.Insert, result)
	if err != nil {
		return nil, err
	}

	for _, pair := range inserts {
		if isIRI(pair.Object) {
			result.InsertObjects = appendUnique(result.InsertObjects, pair.Object)
		}
	}

	return update.TriplePatternStatement{
		Subject:  subject,
		NodePath: nodePath,
		Filter:   filter,
		Delete:   deletes,
		Insert:   inserts,
	}, nil
}

func (compiler *Compiler) pairs(column, text string, result *Result) ([]polist.Pair, error) {
	expanded, err := compiler.expander.ExpandFragment(polist.StripOuterQuotes(text))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", column, err)
	}
	pairs, dropped := compiler.parser.ParseUnwrapped(expanded)
	result.Dropped = append(result.Dropped, dropped...)
	return pairs, nil
}

func (compiler *Compiler) fragment(row table.FragmentRow, subject string, result *Result) (update.Statement, error) {
	where, err := compiler.expander.ExpandFragment(row.Where)
	if err != nil {
		return nil, fmt.Errorf("where: %w", err)
	}
	deleteFragment, err := compiler.expander.ExpandFragment(row.Delete)
	if err != nil {
		return nil, fmt.Errorf("delete: %w", err)
	}
	insertFragment, err := compiler.expander.ExpandFragment(row.Insert)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}

	result.InsertObjects = objectIRIs(insertFragment)

	return update.FragmentStatement{
		Subject: subject,
		Where:   where,
		Delete:  deleteFragment,
		Insert:  insertFragment,
	}, nil
}

// CompileAll compiles rows and returns results in input order. Under
// RowAbort the first failing row, in table order, is returned as error.
func (compiler *Compiler) CompileAll(ctx context.Context, rows []table.EditRow) ([]Result, error) {
	results := make([]Result, len(rows))
	errs := make([]error, len(rows))

	if compiler.options.Workers == 1 || len(rows) < 2 {
		for index, row := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[index], errs[index] = compiler.CompileRow(row)
			if errs[index] != nil && compiler.options.RowFailure == RowAbort {
				return nil, errs[index]
			}
		}
	} else {
		compiler.compileConcurrently(ctx, rows, results, errs)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	for index, err := range errs {
		if err == nil {
			continue
		}
		if compiler.options.RowFailure == RowAbort {
			return nil, err
		}
		compiler.options.Logger.Printf("skipping row: %v", err)
		results[index].Err = err
		results[index].Statement = ""
	}

	return results, nil
}

func (compiler *Compiler) compileConcurrently(ctx context.Context, rows []table.EditRow, results []Result, errs []error) {
	semaphore := make(chan struct{}, compiler.options.Workers)
	var wg sync.WaitGroup

	for index, row := range rows {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(index int, row table.EditRow) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[index], errs[index] = compiler.CompileRow(row)
		}(index, row)
	}

	wg.Wait()
}

// CompileTable is the one-call pipeline: bind the table's prefixes and
// compile every row.
func CompileTable(ctx context.Context, loaded *table.Table, options Options) (*Compiler, []Result, error) {
	compiler, err := New(loaded.Prefixes, options)
	if err != nil {
		return nil, nil, err
	}
	results, err := compiler.CompileAll(ctx, loaded.Rows)
	if err != nil {
		return compiler, nil, err
	}
	return compiler, results, nil
}

// Statements returns the statement texts of the successful results.
func Statements(results []Result) []string {
	statements := make([]string, 0, len(results))
	for _, result := range results {
		if result.Err != nil || result.Statement == "" {
			continue
		}
		statements = append(statements, result.Statement)
	}
	return statements
}

// IsRowError reports whether err is a per-row failure rather than a
// structural one.
func IsRowError(err error) bool {
	var rowError *RowError
	return errors.As(err, &rowError)
}
