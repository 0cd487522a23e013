package referent

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/coolbeans/rdfedits/pkg/compile"
)

// Answer is the checker's view of one IRI.
type Answer struct {
	Existence Existence
	Endpoint  string
	Error     string
	Cached    bool
}

// CheckerConfig configures a Checker.
type CheckerConfig struct {
	// Concurrency is the maximum number of outstanding queries.
	Concurrency int

	// FlagUnknown also warns when existence could not be determined.
	FlagUnknown bool

	// Cache is consulted before the oracle. Nil disables caching.
	Cache Cache

	Logger *log.Logger
}

// Checker runs the validation pass over compiled rows.
type Checker struct {
	oracle Oracle
	config CheckerConfig
}

// NewChecker creates a checker backed by oracle.
func NewChecker(oracle Oracle, config CheckerConfig) *Checker {
	if config.Concurrency < 1 {
		config.Concurrency = 3
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}
	return &Checker{oracle: oracle, config: config}
}

// Candidates lists the inserted object IRIs of the successful results.
func Candidates(results []compile.Result) []Candidate {
	var candidates []Candidate
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		for _, object := range result.InsertObjects {
			candidates = append(candidates, Candidate{
				Line:    result.Line,
				Subject: result.Subject,
				Object:  object,
			})
		}
	}
	return candidates
}

// Ask resolves a single IRI through the cache and the oracle.
func (checker *Checker) Ask(ctx context.Context, iri string) Answer {
	if checker.config.Cache != nil {
		if existence, found := checker.config.Cache.Get(iri); found {
			return Answer{Existence: existence, Cached: true}
		}
	}

	answer := Answer{}
	if endpointed, ok := checker.oracle.(interface{ EndpointFor(string) (string, bool) }); ok {
		answer.Endpoint, _ = endpointed.EndpointFor(iri)
	}

	existence, err := checker.oracle.Exists(ctx, iri)
	answer.Existence = existence
	if err != nil {
		answer.Existence = ExistsUnknown
		answer.Error = err.Error()
		checker.config.Logger.Printf("existence of %s unknown: %v", iri, err)
		return answer
	}

	if checker.config.Cache != nil {
		checker.config.Cache.Set(iri, existence)
	}
	return answer
}

// Check asks about every distinct object once and reports the candidates
// whose object is missing.
func (checker *Checker) Check(ctx context.Context, candidates []Candidate) *Report {
	report := NewReport()

	var distinct []string
	seen := make(map[string]bool)
	for _, candidate := range candidates {
		if !seen[candidate.Object] {
			seen[candidate.Object] = true
			distinct = append(distinct, candidate.Object)
		}
	}

	answers := make(map[string]Answer, len(distinct))
	var answersMu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, checker.config.Concurrency)

	for _, iri := range distinct {
		wg.Add(1)
		go func(iri string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				answersMu.Lock()
				answers[iri] = Answer{Existence: ExistsUnknown, Error: ctx.Err().Error()}
				answersMu.Unlock()
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			answer := checker.Ask(ctx, iri)
			answersMu.Lock()
			answers[iri] = answer
			answersMu.Unlock()
		}(iri)
	}
	wg.Wait()

	for _, candidate := range candidates {
		report.Add(candidate, answers[candidate.Object], checker.config.FlagUnknown)
	}

	report.Finalize()
	return report
}

// Suppress drops the results of rows that raised a warning.
func Suppress(results []compile.Result, report *Report) []compile.Result {
	warned := report.WarnedLines()
	kept := make([]compile.Result, 0, len(results))
	for _, result := range results {
		if warned[result.Line] {
			continue
		}
		kept = append(kept, result)
	}
	return kept
}
