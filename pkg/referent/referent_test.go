package referent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/rdfedits/pkg/compile"
	"github.com/coolbeans/rdfedits/pkg/graph"
)

// newEndpoint serves ASK answers: IRIs containing "known" exist.
func newEndpoint(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		query := r.URL.Query().Get("query")
		if !strings.HasPrefix(query, "ASK WHERE") {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		if r.Header.Get("Accept") != "application/sparql-results+json" {
			http.Error(w, "bad accept", http.StatusNotAcceptable)
			return
		}
		if strings.Contains(query, "broken") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/sparql-results+json")
		json.NewEncoder(w).Encode(map[string]any{
			"head":    map[string]any{},
			"boolean": strings.Contains(query, "known"),
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAskQuery(t *testing.T) {
	want := "ASK WHERE { { <http://example.org/a> ?p ?o } UNION { ?s ?p <http://example.org/a> } }"
	assert.Equal(t, want, AskQuery("<http://example.org/a>"))
	assert.Equal(t, want, AskQuery("http://example.org/a"))
}

func TestSPARQLOracle_EndpointFor(t *testing.T) {
	oracle := NewSPARQLOracle(OracleConfig{Endpoints: []Endpoint{
		{Namespace: "https://data.razu.nl/", URL: "https://general/sparql"},
		{Namespace: "https://data.razu.nl/id/object/", URL: "https://objects/sparql"},
	}})

	testCases := []struct {
		name     string
		iri      string
		expected string
		found    bool
	}{
		{"longest_namespace", "<https://data.razu.nl/id/object/nl-1>", "https://objects/sparql", true},
		{"shorter_namespace", "https://data.razu.nl/id/concept/x", "https://general/sparql", true},
		{"no_namespace", "<http://example.org/x>", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			endpoint, found := oracle.EndpointFor(tc.iri)
			assert.Equal(t, tc.found, found)
			assert.Equal(t, tc.expected, endpoint)
		})
	}
}

func TestSPARQLOracle_Exists(t *testing.T) {
	var requests int32
	server := newEndpoint(t, &requests)
	oracle := NewSPARQLOracle(OracleConfig{
		Endpoints: []Endpoint{{Namespace: "http://example.org/", URL: server.URL + "/sparql?default-graph-uri=x"}},
		Timeout:   5 * time.Second,
	})

	existence, err := oracle.Exists(context.Background(), "<http://example.org/known>")
	require.NoError(t, err)
	assert.Equal(t, ExistsTrue, existence)

	existence, err = oracle.Exists(context.Background(), "<http://example.org/other>")
	require.NoError(t, err)
	assert.Equal(t, ExistsFalse, existence)

	existence, err = oracle.Exists(context.Background(), "<http://example.org/broken>")
	assert.Error(t, err)
	assert.Equal(t, ExistsUnknown, existence)

	existence, err = oracle.Exists(context.Background(), "<urn:x:1>")
	assert.True(t, errors.Is(err, ErrNoEndpoint))
	assert.Equal(t, ExistsUnknown, existence)

	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache(50 * time.Millisecond)

	cache.Set("<a>", ExistsTrue)
	cache.Set("<b>", ExistsUnknown)

	existence, found := cache.Get("<a>")
	assert.True(t, found)
	assert.Equal(t, ExistsTrue, existence)

	_, found = cache.Get("<b>")
	assert.False(t, found, "unknown answers must not be cached")

	time.Sleep(80 * time.Millisecond)
	_, found = cache.Get("<a>")
	assert.False(t, found, "entry should have expired")
}

func TestBoltCache_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "referents.db")

	cache, err := OpenBoltCache(path, time.Hour)
	require.NoError(t, err)
	cache.Set("<http://example.org/a>", ExistsFalse)
	cache.Set("<http://example.org/b>", ExistsUnknown)
	require.NoError(t, cache.Close())

	reopened, err := OpenBoltCache(path, time.Hour)
	require.NoError(t, err)
	defer reopened.Close()

	existence, found := reopened.Get("<http://example.org/a>")
	assert.True(t, found)
	assert.Equal(t, ExistsFalse, existence)

	_, found = reopened.Get("<http://example.org/b>")
	assert.False(t, found)
}

func TestBoltCache_Expired(t *testing.T) {
	cache, err := OpenBoltCache(filepath.Join(t.TempDir(), "referents.db"), time.Nanosecond)
	require.NoError(t, err)
	defer cache.Close()

	cache.Set("<a>", ExistsTrue)
	time.Sleep(time.Millisecond)
	_, found := cache.Get("<a>")
	assert.False(t, found)
}

func TestTieredCache_Backfill(t *testing.T) {
	front := NewMemoryCache(time.Hour)
	back := NewMemoryCache(time.Hour)
	back.Set("<a>", ExistsTrue)

	tiered := TieredCache{front, back}
	existence, found := tiered.Get("<a>")
	assert.True(t, found)
	assert.Equal(t, ExistsTrue, existence)

	existence, found = front.Get("<a>")
	assert.True(t, found, "front layer should be back-filled")
	assert.Equal(t, ExistsTrue, existence)
}

func TestRateLimitedHTTPClient(t *testing.T) {
	var requests int32
	server := newEndpoint(t, &requests)
	client := NewRateLimitedHTTPClient(http.DefaultClient, 50*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodGet, server.URL+"?query=ASK+WHERE", nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

// recordingClient notes when each request was sent.
type recordingClient struct {
	mu    sync.Mutex
	sends []time.Time
}

func (client *recordingClient) Do(req *http.Request) (*http.Response, error) {
	client.mu.Lock()
	client.sends = append(client.sends, time.Now())
	client.mu.Unlock()
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestRateLimitedHTTPClient_Concurrent(t *testing.T) {
	const interval = 50 * time.Millisecond
	recorder := &recordingClient{}
	client := NewRateLimitedHTTPClient(recorder, interval)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, "http://endpoint/sparql", nil)
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := client.Do(req); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, recorder.sends, 4)
	sends := append([]time.Time(nil), recorder.sends...)
	sort.Slice(sends, func(i, j int) bool { return sends[i].Before(sends[j]) })
	for i := 1; i < len(sends); i++ {
		gap := sends[i].Sub(sends[i-1])
		assert.GreaterOrEqual(t, gap, interval-10*time.Millisecond, "requests %d and %d only %v apart", i-1, i, gap)
	}
}

func TestRateLimitedHTTPClient_Cancelled(t *testing.T) {
	var requests int32
	server := newEndpoint(t, &requests)
	client := NewRateLimitedHTTPClient(http.DefaultClient, time.Hour)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEndpointRateLimiter_GetClient(t *testing.T) {
	limiter := NewEndpointRateLimiter(http.DefaultClient, time.Second)
	first := limiter.GetClient("https://one/sparql")
	assert.Same(t, first, limiter.GetClient("https://one/sparql"))
	assert.NotSame(t, first, limiter.GetClient("https://two/sparql"))
}

func TestCandidates(t *testing.T) {
	results := []compile.Result{
		{Line: 3, Subject: "<s1>", InsertObjects: []string{"<o1>", "<o2>"}},
		{Line: 4, Subject: "<s2>", Err: errors.New("skipped"), InsertObjects: []string{"<o3>"}},
		{Line: 5, Subject: "<s3>"},
	}

	assert.Equal(t, []Candidate{
		{Line: 3, Subject: "<s1>", Object: "<o1>"},
		{Line: 3, Subject: "<s1>", Object: "<o2>"},
	}, Candidates(results))
}

func TestChecker_Check(t *testing.T) {
	var requests int32
	server := newEndpoint(t, &requests)
	oracle := NewSPARQLOracle(OracleConfig{
		Endpoints: []Endpoint{{Namespace: "http://example.org/", URL: server.URL}},
	})

	candidates := []Candidate{
		{Line: 5, Subject: "<http://example.org/s2>", Object: "<http://example.org/missing>"},
		{Line: 3, Subject: "<http://example.org/s1>", Object: "<http://example.org/known>"},
		{Line: 4, Subject: "<http://example.org/s1>", Object: "<http://example.org/known>"},
		{Line: 6, Subject: "<http://example.org/s3>", Object: "<urn:nowhere:1>"},
	}

	t.Run("missing_only", func(t *testing.T) {
		checker := NewChecker(oracle, CheckerConfig{Concurrency: 2})
		report := checker.Check(context.Background(), candidates)

		assert.Equal(t, 4, report.TotalObjects)
		assert.Equal(t, 2, report.ExistingCount)
		assert.Equal(t, 1, report.MissingCount)
		assert.Equal(t, 1, report.UnknownCount)
		require.Len(t, report.Warnings, 1)
		assert.Equal(t, 5, report.Warnings[0].Line)
		assert.Equal(t, ExistsFalse, report.Warnings[0].Existence)
		assert.Equal(t, server.URL, report.Warnings[0].Endpoint)
	})

	t.Run("flag_unknown", func(t *testing.T) {
		checker := NewChecker(oracle, CheckerConfig{FlagUnknown: true})
		report := checker.Check(context.Background(), candidates)

		require.Len(t, report.Warnings, 2)
		assert.Equal(t, 5, report.Warnings[0].Line)
		assert.Equal(t, 6, report.Warnings[1].Line)
		assert.Contains(t, report.Warnings[1].Error, ErrNoEndpoint.Error())
		assert.Equal(t, map[int]bool{5: true, 6: true}, report.WarnedLines())
	})
}

func TestChecker_UsesCache(t *testing.T) {
	var requests int32
	server := newEndpoint(t, &requests)
	oracle := NewSPARQLOracle(OracleConfig{
		Endpoints: []Endpoint{{Namespace: "http://example.org/", URL: server.URL}},
	})
	checker := NewChecker(oracle, CheckerConfig{Cache: NewMemoryCache(time.Hour)})

	candidates := []Candidate{{Line: 3, Object: "<http://example.org/known>"}}
	checker.Check(context.Background(), candidates)
	report := checker.Check(context.Background(), candidates)

	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.Equal(t, 1, report.CachedAnswers)
}

func TestChecker_Cancelled(t *testing.T) {
	var requests int32
	server := newEndpoint(t, &requests)
	oracle := NewSPARQLOracle(OracleConfig{
		Endpoints: []Endpoint{{Namespace: "http://example.org/", URL: server.URL}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewChecker(oracle, CheckerConfig{}).Check(ctx, []Candidate{{Line: 3, Object: "<http://example.org/known>"}})
	assert.Equal(t, 1, report.UnknownCount)
	assert.Empty(t, report.Warnings)
}

func TestSuppress(t *testing.T) {
	results := []compile.Result{{Line: 3}, {Line: 4}, {Line: 5}}
	report := NewReport()
	report.Add(Candidate{Line: 4, Object: "<o>"}, Answer{Existence: ExistsFalse}, false)

	kept := Suppress(results, report)
	require.Len(t, kept, 2)
	assert.Equal(t, 3, kept[0].Line)
	assert.Equal(t, 5, kept[1].Line)
}

func TestReport_Formats(t *testing.T) {
	report := NewReport()
	report.Add(Candidate{Line: 7, Subject: "<s>", Object: "<http://example.org/gone>"}, Answer{Existence: ExistsFalse, Endpoint: "https://ep/sparql"}, false)
	report.Add(Candidate{Line: 8, Subject: "<s>", Object: "<http://example.org/here>"}, Answer{Existence: ExistsTrue, Cached: true}, false)
	report.Finalize()

	markdown := report.ToMarkdown()
	assert.Contains(t, markdown, "# Referent Check Report")
	assert.Contains(t, markdown, "| 7 | `<s>` | `<http://example.org/gone>` | false | https://ep/sparql |")
	assert.Contains(t, markdown, "- **Answered from cache**: 1")

	html := string(report.ToHTML())
	assert.Contains(t, html, "<h1>Referent Check Report</h1>")
	assert.Contains(t, html, "<table>")

	data, err := report.ToJSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(1), decoded["missing"])

	assert.Contains(t, report.String(), "line 7: <s> inserts <http://example.org/gone> (exists: false)")
	assert.True(t, report.HasWarnings())
}

func TestGraphOracle(t *testing.T) {
	snapshot, err := graph.ReadNTriples(strings.NewReader(
		"<http://example.org/a> <http://example.org/p> <http://example.org/b> .\n"))
	require.NoError(t, err)
	oracle := GraphOracle{Store: snapshot}

	testCases := []struct {
		name     string
		iri      string
		expected Existence
	}{
		{"subject", "<http://example.org/a>", ExistsTrue},
		{"object_unbracketed", "http://example.org/b", ExistsTrue},
		{"absent", "<http://example.org/c>", ExistsFalse},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			existence, err := oracle.Exists(context.Background(), tc.iri)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, existence)
		})
	}

	report := NewChecker(oracle, CheckerConfig{}).Check(context.Background(), []Candidate{
		{Line: 3, Object: "<http://example.org/b>"},
		{Line: 4, Object: "<http://example.org/c>"},
	})
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, 4, report.Warnings[0].Line)
}
