package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coolbeans/rdfedits/pkg/compile"
	"github.com/coolbeans/rdfedits/pkg/config"
	"github.com/coolbeans/rdfedits/pkg/expand"
	"github.com/coolbeans/rdfedits/pkg/polist"
	"github.com/coolbeans/rdfedits/pkg/prefix"
	"github.com/coolbeans/rdfedits/pkg/table"
)

var version = "0.1.0"

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (exit *exitError) Error() string { return exit.err.Error() }
func (exit *exitError) Unwrap() error { return exit.err }

func main() {
	rootCmd := &cobra.Command{
		Use:   "rdfedits",
		Short: "Compile RDF edit tables into SPARQL UPDATE",
		Long: `rdfedits turns a delimited edit table into SPARQL UPDATE statements.

The table starts with prefix declarations (prefix;namespace), followed by
a header row and one data row per edit:
  - triple pattern mode: subject;node_path;optional_node_filter;delete;insert
  - fragment mode:       subject;where;delete;insert

Compiled statements are written in table order, one per row.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log diagnostics to stderr")

	rootCmd.AddCommand(compileCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(pathCmd())
	rootCmd.AddCommand(manifestCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rdfedits %s\n", version)
		},
	}
}

func newLogger(cmd *cobra.Command) *log.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "rdfedits: ", 0)
}

// addTableFlags registers the flags that override the table, policies and
// output sections of the configuration.
func addTableFlags(cmd *cobra.Command) {
	cmd.Flags().String("delimiter", "", "Cell delimiter (default \";\")")
	cmd.Flags().String("mode", "", "Row mode: auto, triple or fragment")
	cmd.Flags().Bool("prefixes", false, "Prepend PREFIX lines to every statement")
	cmd.Flags().Int("workers", 0, "Rows compiled concurrently")
	cmd.Flags().String("duplicate-prefix", "", "Duplicate prefix policy: last_wins or reject")
	cmd.Flags().String("undeclared-prefix", "", "Undeclared prefix policy: pass_through or fail")
	cmd.Flags().String("row-failure", "", "Row failure policy: abort or skip")
	cmd.Flags().String("literal-semicolons", "", "Semicolons in literals: quote_aware or naive")
	cmd.Flags().String("subject", "", "Compile only the first row with this subject cell")
}

// addValidationFlags registers the flags of the referent check.
func addValidationFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("endpoint", nil, "Namespace endpoint as namespace=url (repeatable)")
	cmd.Flags().String("graph", "", "Answer from a local N-Triples snapshot instead of endpoints")
	cmd.Flags().String("timeout", "", "Timeout per ASK request, e.g. 10s")
	cmd.Flags().String("rate-limit", "", "Minimum interval between requests to one endpoint")
	cmd.Flags().String("cache-file", "", "Persistent answer cache (bbolt file)")
	cmd.Flags().Bool("flag-unknown", false, "Also warn when existence cannot be determined")
	cmd.Flags().Bool("suppress-rows", false, "Leave rows with warnings out of the output")
	cmd.Flags().Bool("fail-on-warning", false, "Exit with status 2 when warnings are raised")
	cmd.Flags().String("report", "", "Write the report to a file (.md, .html or .json)")
}

// loadConfig reads --config, or the defaults, and applies changed flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	settings := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}

	if err := applyFlags(cmd, settings); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

func applyFlags(cmd *cobra.Command, settings *config.Config) error {
	changed := func(name string) bool {
		flag := cmd.Flags().Lookup(name)
		return flag != nil && flag.Changed
	}
	stringFlag := func(name string) string {
		value, _ := cmd.Flags().GetString(name)
		return value
	}
	boolFlag := func(name string) bool {
		value, _ := cmd.Flags().GetBool(name)
		return value
	}

	if changed("delimiter") {
		settings.Table.Delimiter = stringFlag("delimiter")
	}
	if changed("mode") {
		settings.Table.Mode = table.Mode(stringFlag("mode"))
	}
	if changed("prefixes") {
		settings.Output.Prefixes = boolFlag("prefixes")
	}
	if changed("workers") {
		settings.Output.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if changed("duplicate-prefix") {
		settings.Policies.DuplicatePrefix = prefix.DuplicatePolicy(stringFlag("duplicate-prefix"))
	}
	if changed("undeclared-prefix") {
		settings.Policies.UndeclaredPrefix = expand.UndeclaredPolicy(stringFlag("undeclared-prefix"))
	}
	if changed("row-failure") {
		settings.Policies.RowFailure = compile.RowFailurePolicy(stringFlag("row-failure"))
	}
	if changed("literal-semicolons") {
		settings.Policies.LiteralSemicolons = polist.LiteralPolicy(stringFlag("literal-semicolons"))
	}

	if changed("endpoint") {
		endpoints, _ := cmd.Flags().GetStringSlice("endpoint")
		settings.Validation.Endpoints = nil
		for _, endpoint := range endpoints {
			namespace, endpointURL, ok := strings.Cut(endpoint, "=")
			if !ok {
				return fmt.Errorf("--endpoint %q: expected namespace=url", endpoint)
			}
			settings.Validation.Endpoints = append(settings.Validation.Endpoints, config.Endpoint{
				Namespace: namespace,
				URL:       endpointURL,
			})
		}
	}
	if changed("graph") {
		settings.Validation.GraphFile = stringFlag("graph")
	}
	if changed("timeout") {
		settings.Validation.Timeout = stringFlag("timeout")
	}
	if changed("rate-limit") {
		settings.Validation.RateLimit = stringFlag("rate-limit")
	}
	if changed("cache-file") {
		settings.Validation.CacheFile = stringFlag("cache-file")
	}
	if changed("flag-unknown") {
		settings.Validation.FlagUnknown = boolFlag("flag-unknown")
	}
	if changed("suppress-rows") {
		settings.Validation.SuppressRows = boolFlag("suppress-rows")
	}
	if changed("fail-on-warning") {
		settings.Validation.FailOnWarning = boolFlag("fail-on-warning")
	}

	return nil
}
