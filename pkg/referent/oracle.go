package referent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/coolbeans/rdfedits/pkg/graph"
)

// ErrNoEndpoint is returned when no configured namespace covers an IRI.
var ErrNoEndpoint = errors.New("no endpoint for namespace")

// Oracle answers whether an IRI occurs in the target graphs.
type Oracle interface {
	Exists(ctx context.Context, iri string) (Existence, error)
}

// Endpoint maps a namespace to the SPARQL endpoint that holds its terms.
type Endpoint struct {
	Namespace string
	URL       string
}

// OracleConfig configures a SPARQLOracle.
type OracleConfig struct {
	Endpoints []Endpoint

	// Timeout bounds each ASK request.
	Timeout time.Duration

	// RateLimit is the minimum interval between requests to one endpoint.
	RateLimit time.Duration

	UserAgent string

	// Client replaces the default *http.Client, e.g. in tests.
	Client HTTPClient
}

// SPARQLOracle sends ASK queries to the endpoint whose namespace is the
// longest prefix of the IRI.
type SPARQLOracle struct {
	endpoints []Endpoint
	limiter   *EndpointRateLimiter
	timeout   time.Duration
	userAgent string
}

// NewSPARQLOracle creates an oracle for the configured endpoints.
func NewSPARQLOracle(config OracleConfig) *SPARQLOracle {
	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	endpoints := append([]Endpoint(nil), config.Endpoints...)
	sort.SliceStable(endpoints, func(i, j int) bool {
		return len(endpoints[i].Namespace) > len(endpoints[j].Namespace)
	})

	return &SPARQLOracle{
		endpoints: endpoints,
		limiter:   NewEndpointRateLimiter(client, config.RateLimit),
		timeout:   config.Timeout,
		userAgent: config.UserAgent,
	}
}

// EndpointFor returns the endpoint URL responsible for iri.
func (sparqlOracle *SPARQLOracle) EndpointFor(iri string) (string, bool) {
	iri = strings.TrimSuffix(strings.TrimPrefix(iri, "<"), ">")
	for _, endpoint := range sparqlOracle.endpoints {
		if strings.HasPrefix(iri, endpoint.Namespace) {
			return endpoint.URL, true
		}
	}
	return "", false
}

// AskQuery builds the existence query for iri: the IRI occurs as subject or
// as object of some triple.
func AskQuery(iri string) string {
	iri = strings.TrimSuffix(strings.TrimPrefix(iri, "<"), ">")
	return fmt.Sprintf("ASK WHERE { { <%s> ?p ?o } UNION { ?s ?p <%s> } }", iri, iri)
}

type askResponse struct {
	Boolean *bool `json:"boolean"`
}

// Exists queries the responsible endpoint. Any failure yields
// ExistsUnknown together with the cause.
func (sparqlOracle *SPARQLOracle) Exists(ctx context.Context, iri string) (Existence, error) {
	endpoint, ok := sparqlOracle.EndpointFor(iri)
	if !ok {
		return ExistsUnknown, ErrNoEndpoint
	}

	requestURL, err := url.Parse(endpoint)
	if err != nil {
		return ExistsUnknown, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	query := requestURL.Query()
	query.Set("query", AskQuery(iri))
	requestURL.RawQuery = query.Encode()

	if sparqlOracle.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sparqlOracle.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return ExistsUnknown, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/sparql-results+json")
	if sparqlOracle.userAgent != "" {
		req.Header.Set("User-Agent", sparqlOracle.userAgent)
	}

	resp, err := sparqlOracle.limiter.GetClient(endpoint).Do(req)
	if err != nil {
		return ExistsUnknown, fmt.Errorf("ask %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return ExistsUnknown, fmt.Errorf("ask %s: HTTP %d", endpoint, resp.StatusCode)
	}

	var answer askResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return ExistsUnknown, fmt.Errorf("ask %s: decoding response: %w", endpoint, err)
	}
	if answer.Boolean == nil {
		return ExistsUnknown, fmt.Errorf("ask %s: response has no boolean", endpoint)
	}

	if *answer.Boolean {
		return ExistsTrue, nil
	}
	return ExistsFalse, nil
}

// GraphOracle answers from a local snapshot of the target graphs.
type GraphOracle struct {
	Store *graph.Store
}

// Exists reports whether iri occurs as subject or object in the snapshot.
func (graphOracle GraphOracle) Exists(ctx context.Context, iri string) (Existence, error) {
	if err := ctx.Err(); err != nil {
		return ExistsUnknown, err
	}
	if !strings.HasPrefix(iri, "<") {
		iri = "<" + iri + ">"
	}
	if graphOracle.Store.Mentions(iri) {
		return ExistsTrue, nil
	}
	return ExistsFalse, nil
}
