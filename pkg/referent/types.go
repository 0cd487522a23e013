// Package referent checks whether the IRIs an update inserts as objects
// already exist in the target graphs, and reports the ones that do not.
package referent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/russross/blackfriday/v2"
)

// Existence is the answer of an oracle for one IRI.
type Existence string

const (
	ExistsTrue    Existence = "true"
	ExistsFalse   Existence = "false"
	ExistsUnknown Existence = "unknown"
)

// Candidate is an inserted object IRI together with the row it came from.
type Candidate struct {
	Line    int    `json:"line"`
	Subject string `json:"subject"`
	Object  string `json:"object"`
}

// UnknownReferentWarning flags an inserted object that the oracle could not
// confirm.
type UnknownReferentWarning struct {
	Candidate
	Existence Existence `json:"existence"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (warning UnknownReferentWarning) String() string {
	return fmt.Sprintf("line %d: %s inserts %s (exists: %s)", warning.Line, warning.Subject, warning.Object, warning.Existence)
}

// Report is the outcome of a validation pass.
type Report struct {
	// Summary statistics
	TotalObjects   int `json:"total_objects"`
	ExistingCount  int `json:"existing"`
	MissingCount   int `json:"missing"`
	UnknownCount   int `json:"unknown"`
	CachedAnswers  int `json:"cached_answers"`
	QueriedAnswers int `json:"queried_answers"`

	// Timing
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`

	Warnings []UnknownReferentWarning `json:"warnings"`
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		StartedAt: time.Now(),
		Warnings:  make([]UnknownReferentWarning, 0),
	}
}

// Add records one answer. A warning is added for ExistsFalse, and for
// ExistsUnknown when flagUnknown is set.
func (report *Report) Add(candidate Candidate, answer Answer, flagUnknown bool) {
	report.TotalObjects++
	if answer.Cached {
		report.CachedAnswers++
	} else {
		report.QueriedAnswers++
	}

	switch answer.Existence {
	case ExistsTrue:
		report.ExistingCount++
		return
	case ExistsFalse:
		report.MissingCount++
	default:
		report.UnknownCount++
		if !flagUnknown {
			return
		}
	}

	report.Warnings = append(report.Warnings, UnknownReferentWarning{
		Candidate: candidate,
		Existence: answer.Existence,
		Endpoint:  answer.Endpoint,
		Error:     answer.Error,
	})
}

// Finalize completes the report with timing and sorts warnings by line.
func (report *Report) Finalize() {
	report.CompletedAt = time.Now()
	report.DurationMs = report.CompletedAt.Sub(report.StartedAt).Milliseconds()

	sort.SliceStable(report.Warnings, func(i, j int) bool {
		if report.Warnings[i].Line != report.Warnings[j].Line {
			return report.Warnings[i].Line < report.Warnings[j].Line
		}
		return report.Warnings[i].Object < report.Warnings[j].Object
	})
}

// HasWarnings reports whether any warning was raised.
func (report *Report) HasWarnings() bool {
	return len(report.Warnings) > 0
}

// WarnedLines returns the set of input lines that raised a warning.
func (report *Report) WarnedLines() map[int]bool {
	lines := make(map[int]bool, len(report.Warnings))
	for _, warning := range report.Warnings {
		lines[warning.Line] = true
	}
	return lines
}

// ToJSON serializes the report to JSON.
func (report *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// ToMarkdown generates a Markdown formatted report.
func (report *Report) ToMarkdown() string {
	var markdownBuilder strings.Builder

	markdownBuilder.WriteString("# Referent Check Report\n\n")

	markdownBuilder.WriteString("## Summary\n\n")
	markdownBuilder.WriteString(fmt.Sprintf("- **Inserted objects**: %d\n", report.TotalObjects))
	markdownBuilder.WriteString(fmt.Sprintf("- **Existing**: %d\n", report.ExistingCount))
	markdownBuilder.WriteString(fmt.Sprintf("- **Missing**: %d\n", report.MissingCount))
	markdownBuilder.WriteString(fmt.Sprintf("- **Unknown**: %d\n", report.UnknownCount))
	markdownBuilder.WriteString(fmt.Sprintf("- **Answered from cache**: %d\n", report.CachedAnswers))
	markdownBuilder.WriteString(fmt.Sprintf("- **Duration**: %dms\n\n", report.DurationMs))

	if len(report.Warnings) > 0 {
		markdownBuilder.WriteString("## Warnings\n\n")
		markdownBuilder.WriteString("| Line | Subject | Object | Exists | Detail |\n")
		markdownBuilder.WriteString("|------|---------|--------|--------|--------|\n")

		for _, warning := range report.Warnings {
			detail := warning.Error
			if detail == "" {
				detail = warning.Endpoint
			}
			if detail == "" {
				detail = "-"
			}
			markdownBuilder.WriteString(fmt.Sprintf("| %d | `%s` | `%s` | %s | %s |\n",
				warning.Line, warning.Subject, warning.Object, warning.Existence, detail))
		}
		markdownBuilder.WriteString("\n")
	}

	return markdownBuilder.String()
}

// ToHTML renders the Markdown report as an HTML fragment.
func (report *Report) ToHTML() []byte {
	return blackfriday.Run([]byte(report.ToMarkdown()))
}

// String returns a human-readable summary of the report.
func (report *Report) String() string {
	var summaryBuilder strings.Builder

	summaryBuilder.WriteString("Referent Check Report\n")
	summaryBuilder.WriteString("=====================\n\n")
	summaryBuilder.WriteString(fmt.Sprintf("Inserted objects: %d\n", report.TotalObjects))
	summaryBuilder.WriteString(fmt.Sprintf("Existing:         %d\n", report.ExistingCount))
	summaryBuilder.WriteString(fmt.Sprintf("Missing:          %d\n", report.MissingCount))
	summaryBuilder.WriteString(fmt.Sprintf("Unknown:          %d\n", report.UnknownCount))
	summaryBuilder.WriteString(fmt.Sprintf("Duration:         %dms\n", report.DurationMs))

	if len(report.Warnings) > 0 {
		summaryBuilder.WriteString(fmt.Sprintf("\nWarnings (%d):\n", len(report.Warnings)))
		for _, warning := range report.Warnings {
			summaryBuilder.WriteString("  - " + warning.String() + "\n")
		}
	}

	return summaryBuilder.String()
}
