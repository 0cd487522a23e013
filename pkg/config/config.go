// Package config loads rdfedits settings from YAML.
package config

import (
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/rdfedits/pkg/compile"
	"github.com/coolbeans/rdfedits/pkg/expand"
	"github.com/coolbeans/rdfedits/pkg/polist"
	"github.com/coolbeans/rdfedits/pkg/prefix"
	"github.com/coolbeans/rdfedits/pkg/table"
)

// Config is the complete configuration file.
type Config struct {
	Table      TableConfig      `yaml:"table"`
	Policies   PolicyConfig     `yaml:"policies"`
	Output     OutputConfig     `yaml:"output"`
	Validation ValidationConfig `yaml:"validation"`
}

// TableConfig describes the layout of the edit table.
type TableConfig struct {
	// Delimiter is the single cell separator character.
	Delimiter string `yaml:"delimiter"`

	// Mode is auto, triple or fragment.
	Mode table.Mode `yaml:"mode"`

	// HeaderMarker is the first cell of the header row.
	HeaderMarker string `yaml:"header_marker,omitempty"`

	// BlockLabel is the label row above the prefix declarations.
	BlockLabel string `yaml:"block_label,omitempty"`
}

// PolicyConfig holds the choices for ambiguous input.
type PolicyConfig struct {
	DuplicatePrefix   prefix.DuplicatePolicy   `yaml:"duplicate_prefix"`
	UndeclaredPrefix  expand.UndeclaredPolicy  `yaml:"undeclared_prefix"`
	RowFailure        compile.RowFailurePolicy `yaml:"row_failure"`
	LiteralSemicolons polist.LiteralPolicy     `yaml:"literal_semicolons"`
}

// OutputConfig controls how compiled statements are written.
type OutputConfig struct {
	// Prefixes prepends PREFIX lines to every statement.
	Prefixes bool `yaml:"prefixes"`

	// Workers is the number of rows compiled concurrently.
	Workers int `yaml:"workers"`
}

// Endpoint maps a namespace to the SPARQL endpoint that holds its terms.
type Endpoint struct {
	Namespace string `yaml:"namespace"`
	URL       string `yaml:"url"`
}

// ValidationConfig configures the INSERT object existence check.
type ValidationConfig struct {
	Endpoints []Endpoint `yaml:"endpoints"`

	// GraphFile answers from a local N-Triples snapshot instead of the
	// endpoints.
	GraphFile string `yaml:"graph_file,omitempty"`

	// Timeout bounds a single ASK request, e.g. "10s".
	Timeout string `yaml:"timeout"`

	// RateLimit is the minimum interval between requests to one endpoint.
	RateLimit string `yaml:"rate_limit"`

	// CacheTTL is how long answers are reused.
	CacheTTL string `yaml:"cache_ttl"`

	// CacheFile enables the persistent answer cache at this path.
	CacheFile string `yaml:"cache_file,omitempty"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent,omitempty"`

	// FlagUnknown also warns when the existence of an object is unknown.
	FlagUnknown bool `yaml:"flag_unknown"`

	// SuppressRows drops rows with warnings from the output.
	SuppressRows bool `yaml:"suppress_rows"`

	// FailOnWarning makes the run exit non-zero when warnings exist.
	FailOnWarning bool `yaml:"fail_on_warning"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Table: TableConfig{
			Delimiter:    string(table.DefaultDelimiter),
			Mode:         table.ModeAuto,
			HeaderMarker: table.DefaultHeaderMarker,
			BlockLabel:   table.DefaultBlockLabel,
		},
		Policies: PolicyConfig{
			DuplicatePrefix:   prefix.DuplicateLastWins,
			UndeclaredPrefix:  expand.UndeclaredPassThrough,
			RowFailure:        compile.RowAbort,
			LiteralSemicolons: polist.LiteralQuoteAware,
		},
		Output: OutputConfig{
			Workers: 1,
		},
		Validation: ValidationConfig{
			Timeout:   "10s",
			RateLimit: "200ms",
			CacheTTL:  "1h",
			UserAgent: "rdfedits/1.0",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every enumerated value and duration.
func (config *Config) Validate() error {
	if utf8.RuneCountInString(config.Table.Delimiter) != 1 {
		return fmt.Errorf("table.delimiter must be a single character, got %q", config.Table.Delimiter)
	}
	if !config.Table.Mode.Valid() {
		return fmt.Errorf("table.mode: unknown value %q", config.Table.Mode)
	}
	if !config.Policies.DuplicatePrefix.Valid() {
		return fmt.Errorf("policies.duplicate_prefix: unknown value %q", config.Policies.DuplicatePrefix)
	}
	if !config.Policies.UndeclaredPrefix.Valid() {
		return fmt.Errorf("policies.undeclared_prefix: unknown value %q", config.Policies.UndeclaredPrefix)
	}
	if !config.Policies.RowFailure.Valid() {
		return fmt.Errorf("policies.row_failure: unknown value %q", config.Policies.RowFailure)
	}
	if !config.Policies.LiteralSemicolons.Valid() {
		return fmt.Errorf("policies.literal_semicolons: unknown value %q", config.Policies.LiteralSemicolons)
	}
	if config.Output.Workers < 1 {
		return fmt.Errorf("output.workers must be at least 1, got %d", config.Output.Workers)
	}

	for index, endpoint := range config.Validation.Endpoints {
		if endpoint.Namespace == "" || endpoint.URL == "" {
			return fmt.Errorf("validation.endpoints[%d]: namespace and url are required", index)
		}
	}
	for name, value := range map[string]string{
		"timeout":    config.Validation.Timeout,
		"rate_limit": config.Validation.RateLimit,
		"cache_ttl":  config.Validation.CacheTTL,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("validation.%s: %w", name, err)
		}
	}

	return nil
}

// TableOptions converts the table section.
func (config *Config) TableOptions() table.Options {
	delimiter, _ := utf8.DecodeRuneInString(config.Table.Delimiter)
	return table.Options{
		ReadOptions: table.ReadOptions{
			Delimiter:    delimiter,
			HeaderMarker: config.Table.HeaderMarker,
			BlockLabel:   config.Table.BlockLabel,
		},
		Mode: config.Table.Mode,
	}
}

// CompileOptions converts the policy and output sections.
func (config *Config) CompileOptions() compile.Options {
	return compile.Options{
		DuplicatePrefix:  config.Policies.DuplicatePrefix,
		UndeclaredPrefix: config.Policies.UndeclaredPrefix,
		RowFailure:       config.Policies.RowFailure,
		Literals:         config.Policies.LiteralSemicolons,
		Workers:          config.Output.Workers,
	}
}

// Durations returns the parsed timeout, rate limit and cache TTL. Call
// after Validate.
func (validationConfig ValidationConfig) Durations() (timeout, rateLimit, cacheTTL time.Duration) {
	timeout, _ = time.ParseDuration(validationConfig.Timeout)
	rateLimit, _ = time.ParseDuration(validationConfig.RateLimit)
	cacheTTL, _ = time.ParseDuration(validationConfig.CacheTTL)
	return timeout, rateLimit, cacheTTL
}
