package referent

import (
	"net/http"
	"sync"
	"time"
)

// HTTPClient is an interface matching the Do method of *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateLimitedHTTPClient enforces a minimum interval between requests.
type RateLimitedHTTPClient struct {
	underlying      HTTPClient
	requestInterval time.Duration
	lastRequest     time.Time
	mu              sync.Mutex
}

// NewRateLimitedHTTPClient wraps underlying with the given minimum interval.
func NewRateLimitedHTTPClient(underlying HTTPClient, requestInterval time.Duration) *RateLimitedHTTPClient {
	return &RateLimitedHTTPClient{
		underlying:      underlying,
		requestInterval: requestInterval,
	}
}

// Do waits for the rate limiter, then sends the request. Each caller
// reserves its send time under the lock, so concurrent callers are spaced
// by the interval instead of waking together.
func (rateLimitedClient *RateLimitedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	rateLimitedClient.mu.Lock()
	now := time.Now()
	sendAt := now
	if !rateLimitedClient.lastRequest.IsZero() {
		if next := rateLimitedClient.lastRequest.Add(rateLimitedClient.requestInterval); next.After(now) {
			sendAt = next
		}
	}
	rateLimitedClient.lastRequest = sendAt
	rateLimitedClient.mu.Unlock()

	if waitTime := sendAt.Sub(now); waitTime > 0 {
		timer := time.NewTimer(waitTime)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return rateLimitedClient.underlying.Do(req)
}

// EndpointRateLimiter hands out one rate-limited client per endpoint URL.
type EndpointRateLimiter struct {
	clients         map[string]*RateLimitedHTTPClient
	underlying      HTTPClient
	requestInterval time.Duration
	mu              sync.Mutex
}

// NewEndpointRateLimiter creates a limiter applying requestInterval to each
// endpoint independently.
func NewEndpointRateLimiter(underlying HTTPClient, requestInterval time.Duration) *EndpointRateLimiter {
	return &EndpointRateLimiter{
		clients:         make(map[string]*RateLimitedHTTPClient),
		underlying:      underlying,
		requestInterval: requestInterval,
	}
}

// GetClient returns the rate-limited client for an endpoint.
func (endpointRateLimiter *EndpointRateLimiter) GetClient(endpoint string) *RateLimitedHTTPClient {
	endpointRateLimiter.mu.Lock()
	defer endpointRateLimiter.mu.Unlock()

	if client, exists := endpointRateLimiter.clients[endpoint]; exists {
		return client
	}

	client := NewRateLimitedHTTPClient(endpointRateLimiter.underlying, endpointRateLimiter.requestInterval)
	endpointRateLimiter.clients[endpoint] = client
	return client
}
