package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/coolbeans/rdfedits/pkg/compile"
	"github.com/coolbeans/rdfedits/pkg/config"
	"github.com/coolbeans/rdfedits/pkg/referent"
	"github.com/coolbeans/rdfedits/pkg/table"
)

func newTestCommand(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().Bool("verbose", false, "")
	addTableFlags(cmd)
	addValidationFlags(cmd)
	return cmd
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "rdfedits.yaml")
	content := "table:\n  delimiter: \",\"\noutput:\n  workers: 2\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cmd := newTestCommand(t)
	for name, value := range map[string]string{
		"config":      configPath,
		"mode":        "fragment",
		"row-failure": "skip",
		"endpoint":    "https://data.razu.nl/=https://api.razu.nl/sparql",
		"prefixes":    "true",
	} {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatalf("Set(%s) error = %v", name, err)
		}
	}

	settings, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if settings.Table.Delimiter != "," {
		t.Errorf("Delimiter = %q, want value from file", settings.Table.Delimiter)
	}
	if settings.Output.Workers != 2 {
		t.Errorf("Workers = %d, want 2", settings.Output.Workers)
	}
	if settings.Table.Mode != table.ModeFragment {
		t.Errorf("Mode = %q, want fragment", settings.Table.Mode)
	}
	if settings.Policies.RowFailure != compile.RowSkip {
		t.Errorf("RowFailure = %q, want skip", settings.Policies.RowFailure)
	}
	if !settings.Output.Prefixes {
		t.Error("Prefixes flag not applied")
	}
	if len(settings.Validation.Endpoints) != 1 || settings.Validation.Endpoints[0].URL != "https://api.razu.nl/sparql" {
		t.Errorf("Endpoints = %+v", settings.Validation.Endpoints)
	}
}

func TestLoadConfig_InvalidFlags(t *testing.T) {
	testCases := []struct {
		name  string
		flag  string
		value string
	}{
		{"mode", "mode", "diagonal"},
		{"endpoint", "endpoint", "no-separator"},
		{"policy", "literal-semicolons", "smart"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := newTestCommand(t)
			if err := cmd.Flags().Set(tc.flag, tc.value); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if _, err := loadConfig(cmd); err == nil {
				t.Error("loadConfig() error = nil")
			}
		})
	}
}

func TestCompileFile(t *testing.T) {
	tablePath := filepath.Join(t.TempDir(), "edits.csv")
	input := "prefixes;\nex:;http://example.org/\n" +
		"subject;where;delete;insert\n" +
		"ex:a;?s ex:p ?o .;;?s ex:q ex:b .\n" +
		"ex:c;?s ex:p ?o .;;?s ex:q ex:d .\n"
	if err := os.WriteFile(tablePath, []byte(input), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	settings := config.Default()
	settings.Output.Prefixes = true
	logger := log.New(io.Discard, "", 0)

	compiler, results, err := compileFile(context.Background(), tablePath, "", settings, logger)
	if err != nil {
		t.Fatalf("compileFile() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	text := render(compiler, results, settings)
	if strings.Count(text, "PREFIX ex: <http://example.org/>") != 2 {
		t.Errorf("expected a PREFIX header per statement:\n%s", text)
	}

	_, results, err = compileFile(context.Background(), tablePath, "ex:c", settings, logger)
	if err != nil {
		t.Fatalf("compileFile(subject) error = %v", err)
	}
	if len(results) != 1 || results[0].Subject != "<http://example.org/c>" {
		t.Errorf("subject filter results = %+v", results)
	}

	if _, _, err := compileFile(context.Background(), tablePath, "ex:zz", settings, logger); err == nil {
		t.Error("compileFile() with an unknown subject should fail")
	}
}

func TestWriteReport(t *testing.T) {
	report := referent.NewReport()
	report.Add(referent.Candidate{Line: 4, Subject: "<s>", Object: "<o>"}, referent.Answer{Existence: referent.ExistsFalse}, false)
	report.Finalize()

	dir := t.TempDir()
	testCases := []struct {
		name     string
		file     string
		contains string
	}{
		{"markdown", "report.md", "# Referent Check Report"},
		{"html", "report.html", "<h1>Referent Check Report</h1>"},
		{"json", "report.json", `"missing": 1`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.file)
			if err := writeReport(path, report); err != nil {
				t.Fatalf("writeReport() error = %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if !strings.Contains(string(data), tc.contains) {
				t.Errorf("report %s does not contain %q:\n%s", tc.file, tc.contains, data)
			}
		})
	}
}

func TestAnswerCache(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	testCases := []struct {
		name       string
		graphFile  string
		persistent bool
	}{
		{"endpoints", "", true},
		{"graph_snapshot", "snapshot.nt", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cacheFile := filepath.Join(t.TempDir(), "referents.db")
			settings := config.Default()
			settings.Validation.CacheFile = cacheFile
			settings.Validation.GraphFile = tc.graphFile

			cache, closeCache, err := answerCache(settings, time.Hour, logger)
			if err != nil {
				t.Fatalf("answerCache() error = %v", err)
			}
			cache.Set("<http://example.org/a>", referent.ExistsTrue)
			if err := closeCache(); err != nil {
				t.Fatalf("closeCache() error = %v", err)
			}

			_, statErr := os.Stat(cacheFile)
			if persistent := statErr == nil; persistent != tc.persistent {
				t.Errorf("cache file written = %v, want %v", persistent, tc.persistent)
			}
		})
	}
}
