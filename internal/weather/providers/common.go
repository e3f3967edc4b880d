package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/wu-weather/internal/weather"
)

const (
	userAgent    = "wu-weather/1.0"
	maxBodyBytes = 8 << 20
)

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
	errEmptyURL     = errors.New("url is empty")
	errBodyTooLarge = fmt.Errorf("response exceeds %d bytes", maxBodyBytes)
)

// Fetcher issues single GET requests. Calls to each endpoint go through their
// own circuit breaker; there are no retries, the next scheduled cycle is the retry.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewFetcher creates a Fetcher. The client's Timeout bounds every request.
func NewFetcher(client *http.Client, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:   client,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Fetch returns the raw body of a successful GET.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, &weather.FetchError{URL: rawURL, Err: err}
	}
	return body, nil
}

// FetchJSON GETs rawURL and decodes the body into v.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL string, v any) error {
	body, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// The observations API answers 204 for stations that are offline.
		return fmt.Errorf("empty response body: %w", weather.ErrDataUnavailable)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &weather.ParseError{Reason: "invalid json response", Err: err}
	}
	return nil
}

type response struct {
	status   int
	body     []byte
	tooLarge bool
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	if f.client == nil {
		return nil, errNoHTTPClient
	}
	if rawURL == "" {
		return nil, errEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	result, err := f.breaker(u).Execute(func() (interface{}, error) {
		resp, execErr := f.client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		// Only upstream trouble counts against the breaker; client errors are
		// reported after it.
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		if readErr != nil {
			return nil, readErr
		}
		if len(body) > maxBodyBytes {
			return &response{status: resp.StatusCode, tooLarge: true}, nil
		}
		return &response{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}

	resp, ok := result.(*response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, fmt.Errorf("%w: %d", errUnexpected, resp.status)
	}
	if resp.tooLarge {
		return nil, errBodyTooLarge
	}
	return resp.body, nil
}

// breaker returns the circuit breaker for the endpoint (host + path) of u.
func (f *Fetcher) breaker(u *url.URL) *gobreaker.CircuitBreaker {
	key := u.Host + u.Path

	f.mu.Lock()
	defer f.mu.Unlock()

	cb, ok := f.breakers[key]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        key,
			MaxRequests: 1,
			Interval:    time.Hour,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				f.logger.Warn("circuit breaker state changed",
					zap.String("endpoint", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		f.breakers[key] = cb
	}
	return cb
}
