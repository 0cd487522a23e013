package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coolbeans/rdfedits/pkg/compile"
	"github.com/coolbeans/rdfedits/pkg/config"
	"github.com/coolbeans/rdfedits/pkg/graph"
	"github.com/coolbeans/rdfedits/pkg/prefix"
	"github.com/coolbeans/rdfedits/pkg/referent"
	"github.com/coolbeans/rdfedits/pkg/table"
	"github.com/coolbeans/rdfedits/pkg/update"
	"github.com/coolbeans/rdfedits/pkg/watch"
)

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <table>",
		Short: "Compile an edit table into SPARQL UPDATE",
		Long: `Compile an edit table into SPARQL UPDATE statements.

Example:
  rdfedits compile edits.csv
  rdfedits compile edits.csv --prefixes --output edits.rq
  rdfedits compile edits.csv --validate --endpoint https://data.razu.nl/=https://api.razu.nl/sparql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd)
			output, _ := cmd.Flags().GetString("output")
			validate, _ := cmd.Flags().GetBool("validate")
			subject, _ := cmd.Flags().GetString("subject")
			reportPath, _ := cmd.Flags().GetString("report")

			ctx := cmd.Context()
			compiler, results, err := compileFile(ctx, args[0], subject, settings, logger)
			if err != nil {
				return err
			}

			var report *referent.Report
			if validate {
				report, err = checkResults(ctx, results, settings, logger)
				if err != nil {
					return err
				}
				fmt.Fprint(os.Stderr, report.String())
				if err := writeReport(reportPath, report); err != nil {
					return err
				}
				if settings.Validation.SuppressRows {
					results = referent.Suppress(results, report)
				}
			}

			if err := writeOutput(output, render(compiler, results, settings)); err != nil {
				return err
			}

			if report != nil && report.HasWarnings() && settings.Validation.FailOnWarning {
				return &exitError{code: 2, err: fmt.Errorf("%d unknown referent warning(s)", len(report.Warnings))}
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	cmd.Flags().Bool("validate", false, "Check that inserted object IRIs exist before writing")
	addTableFlags(cmd)
	addValidationFlags(cmd)

	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <table>",
		Short: "Check that the objects an edit table inserts already exist",
		Long: `Compile an edit table and ask the configured SPARQL endpoints whether
every IRI inserted in object position already exists.

Example:
  rdfedits check edits.csv --endpoint https://data.razu.nl/=https://api.razu.nl/sparql
  rdfedits check edits.csv --config rdfedits.yaml --report referents.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd)
			formatStr, _ := cmd.Flags().GetString("format")
			subject, _ := cmd.Flags().GetString("subject")
			reportPath, _ := cmd.Flags().GetString("report")

			ctx := cmd.Context()
			_, results, err := compileFile(ctx, args[0], subject, settings, logger)
			if err != nil {
				return err
			}

			report, err := checkResults(ctx, results, settings, logger)
			if err != nil {
				return err
			}
			if err := writeReport(reportPath, report); err != nil {
				return err
			}

			switch formatStr {
			case "json":
				jsonData, err := report.ToJSON()
				if err != nil {
					return fmt.Errorf("failed to serialize report: %w", err)
				}
				fmt.Println(string(jsonData))
			case "markdown":
				fmt.Print(report.ToMarkdown())
			default:
				fmt.Print(report.String())
			}

			if report.HasWarnings() && settings.Validation.FailOnWarning {
				return &exitError{code: 2, err: fmt.Errorf("%d unknown referent warning(s)", len(report.Warnings))}
			}
			return nil
		},
	}

	cmd.Flags().StringP("format", "f", "text", "Output format: text, markdown or json")
	addTableFlags(cmd)
	addValidationFlags(cmd)

	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <table>",
		Short: "Recompile an edit table whenever it is saved",
		Long: `Compile an edit table, then recompile it each time the file changes.
Errors are reported and watching continues.

Example:
  rdfedits watch edits.csv --output edits.rq`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd)
			output, _ := cmd.Flags().GetString("output")
			subject, _ := cmd.Flags().GetString("subject")
			debounce, _ := cmd.Flags().GetDuration("debounce")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rebuild := func(path string) {
				compiler, results, err := compileFile(ctx, path, subject, settings, logger)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
					return
				}
				if err := writeOutput(output, render(compiler, results, settings)); err != nil {
					fmt.Fprintln(os.Stderr, err)
					return
				}
				logger.Printf("compiled %d row(s) from %s", len(results), path)
			}

			rebuild(args[0])

			tableWatcher := watch.NewTableWatcher(args[0], debounce, rebuild)
			tableWatcher.SetOnError(func(err error) {
				logger.Printf("watch error: %v", err)
			})
			fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", args[0])
			return tableWatcher.Run(ctx)
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	cmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before recompiling")
	addTableFlags(cmd)

	return cmd
}

// compileFile loads and compiles one table file. With a subject, only the
// first matching row is compiled.
func compileFile(ctx context.Context, path, subject string, settings *config.Config, logger *log.Logger) (*compile.Compiler, []compile.Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer file.Close()

	loaded, err := table.Load(file, settings.TableOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Printf("loaded %d prefix(es) and %d row(s) in %s mode", len(loaded.Prefixes), len(loaded.Rows), loaded.Mode)

	if subject != "" {
		row, found := loaded.RowBySubject(subject)
		if !found {
			return nil, nil, fmt.Errorf("no row with subject %q in %s", subject, path)
		}
		loaded.Rows = []table.EditRow{row}
	}

	options := settings.CompileOptions()
	options.Logger = logger
	return compile.CompileTable(ctx, loaded, options)
}

func render(compiler *compile.Compiler, results []compile.Result, settings *config.Config) string {
	var bindings []prefix.Binding
	if settings.Output.Prefixes {
		bindings = compiler.Registry().Bindings()
	}
	return update.Render(compile.Statements(results), bindings)
}

func writeOutput(path, text string) error {
	if path == "" {
		fmt.Print(text)
		return nil
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// checkResults runs the referent check over compiled results.
func checkResults(ctx context.Context, results []compile.Result, settings *config.Config, logger *log.Logger) (*referent.Report, error) {
	timeout, rateLimit, cacheTTL := settings.Validation.Durations()

	endpoints := make([]referent.Endpoint, 0, len(settings.Validation.Endpoints))
	for _, endpoint := range settings.Validation.Endpoints {
		endpoints = append(endpoints, referent.Endpoint{Namespace: endpoint.Namespace, URL: endpoint.URL})
	}

	var oracle referent.Oracle
	if settings.Validation.GraphFile != "" {
		snapshot, err := graph.LoadNTriplesFile(settings.Validation.GraphFile)
		if err != nil {
			return nil, err
		}
		logger.Printf("loaded %d triple(s) from %s", snapshot.Count(), settings.Validation.GraphFile)
		oracle = referent.GraphOracle{Store: snapshot}
	} else {
		if len(endpoints) == 0 {
			logger.Printf("no validation endpoints configured; every referent is unknown")
		}
		oracle = referent.NewSPARQLOracle(referent.OracleConfig{
			Endpoints: endpoints,
			Timeout:   timeout,
			RateLimit: rateLimit,
			UserAgent: settings.Validation.UserAgent,
		})
	}

	cache, closeCache, err := answerCache(settings, cacheTTL, logger)
	if err != nil {
		return nil, err
	}
	defer closeCache()

	checker := referent.NewChecker(oracle, referent.CheckerConfig{
		FlagUnknown: settings.Validation.FlagUnknown,
		Cache:       cache,
		Logger:      logger,
	})

	candidates := referent.Candidates(results)
	logger.Printf("checking %d inserted object(s)", len(candidates))
	return checker.Check(ctx, candidates), nil
}

// answerCache builds the cache in front of the oracle. The persistent cache
// only holds endpoint answers, so it is left out when a local graph snapshot
// answers instead.
func answerCache(settings *config.Config, cacheTTL time.Duration, logger *log.Logger) (referent.Cache, func() error, error) {
	memoryCache := referent.NewMemoryCache(cacheTTL)
	noClose := func() error { return nil }

	if settings.Validation.CacheFile == "" {
		return memoryCache, noClose, nil
	}
	if settings.Validation.GraphFile != "" {
		logger.Printf("ignoring cache file %s: answers come from %s", settings.Validation.CacheFile, settings.Validation.GraphFile)
		return memoryCache, noClose, nil
	}

	boltCache, err := referent.OpenBoltCache(settings.Validation.CacheFile, cacheTTL)
	if err != nil {
		return nil, nil, err
	}
	return referent.TieredCache{memoryCache, boltCache}, boltCache.Close, nil
}

func writeReport(path string, report *referent.Report) error {
	if path == "" {
		return nil
	}

	var reportData []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		reportData = []byte(report.ToMarkdown())
	case ".html", ".htm":
		reportData = report.ToHTML()
	default:
		reportData, err = report.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to serialize report: %w", err)
		}
	}

	if err := os.WriteFile(path, reportData, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
