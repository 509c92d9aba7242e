package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fetchguard/fetchguard/pkg/domain"
)

// NativeFetcher is the primary request capability. It fails only on
// transport-level problems; an HTTP response with an error status is a
// normal result at this layer and passes through to the caller.
type NativeFetcher interface {
	Fetch(ctx context.Context, url string, opts domain.RequestOptions) (*domain.Response, error)
}

// HTTPFetcher implements NativeFetcher on net/http with an
// otel-instrumented transport and a bounded body read.
type HTTPFetcher struct {
	client       *http.Client
	maxBodyBytes int64
}

// NewHTTPFetcher creates an HTTPFetcher with the given timeout and
// response-size ceiling.
func NewHTTPFetcher(timeout time.Duration, maxBodyBytes int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 * 1024 * 1024
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBodyBytes: maxBodyBytes,
	}
}

// Fetch performs the request and reads at most maxBodyBytes of the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, opts domain.RequestOptions) (*domain.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("native fetch: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body close in defer

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &domain.Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       data,
	}, nil
}
