package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/lox/weatherpwa/internal/metrics"
)

const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned when the provider answers 404.
var ErrNotFound = errors.New("not found")

var errRetryable = errors.New("retryable status")

// Options configures a provider client.
type Options struct {
	Provider string
	Timeout  time.Duration
	// Retries after the first attempt; zero disables retrying.
	Retries         uint64
	InitialInterval time.Duration
	Headers         map[string]string
}

// Client performs JSON GETs against one upstream provider, behind a circuit
// breaker and with optional exponential-backoff retries.
type Client struct {
	provider string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	retries  uint64
	interval time.Duration
	headers  map[string]string
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	return &Client{
		provider: opts.Provider,
		http:     &http.Client{Timeout: opts.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.Provider,
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
		retries:  opts.Retries,
		interval: opts.InitialInterval,
		headers:  opts.Headers,
	}
}

type response struct {
	status int
	body   []byte
}

// GetJSON fetches url and decodes the body into out. endpoint labels the
// call in metrics and logs.
func (c *Client) GetJSON(ctx context.Context, endpoint, url string, out any) error {
	body, err := c.Get(ctx, endpoint, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// Get fetches url and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, endpoint, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		start := time.Now()
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, url)
		})
		metrics.ProviderLatency.WithLabelValues(c.provider, endpoint).Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.ProviderCallsTotal.WithLabelValues(c.provider, endpoint, "error").Inc()
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%s %s: circuit open: %w", c.provider, endpoint, err))
			}
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%s %s: %w", c.provider, endpoint, err)
		}

		resp := result.(*response)
		metrics.ProviderCallsTotal.WithLabelValues(c.provider, endpoint, strconv.Itoa(resp.status)).Inc()
		switch {
		case resp.status == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%s %s: %w", c.provider, endpoint, ErrNotFound))
		case resp.status < 200 || resp.status >= 300:
			return backoff.Permanent(fmt.Errorf("%s %s: status %d: %s", c.provider, endpoint, resp.status, truncate(resp.body, 200)))
		}
		body = resp.body
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.interval
	notify := func(err error, wait time.Duration) {
		log.Printf("httputil: %s %s: retrying in %s: %v", c.provider, endpoint, wait, err)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}

// do runs a single request. Rate limiting and server errors are returned as
// errors so the breaker counts them; other statuses are passed back to the
// caller.
func (c *Client) do(ctx context.Context, url string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w %d", errRetryable, resp.StatusCode)
	}
	return &response{status: resp.StatusCode, body: body}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
