package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fetchguard/fetchguard/pkg/config"
	"github.com/fetchguard/fetchguard/pkg/domain"
	"github.com/fetchguard/fetchguard/pkg/guard"
	"github.com/fetchguard/fetchguard/pkg/telemetry"
)

const tracerName = "fetchguard/fetcher"

// RetryFetcher performs one logical guarded fetch across bounded physical
// attempts: validate, try the native path, fall back to a validated curl
// invocation, back off, repeat. Attempts never overlap.
type RetryFetcher struct {
	guard   *guard.Guard
	native  NativeFetcher
	shell   ShellRunner
	retry   retryPolicy
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// New creates a RetryFetcher. metrics may be nil when telemetry is not
// wired; a nil logger falls back to slog.Default().
func New(g *guard.Guard, native NativeFetcher, shell ShellRunner, retryCfg config.RetryConfig, logger *slog.Logger, metrics *telemetry.Metrics) *RetryFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryFetcher{
		guard:   g,
		native:  native,
		shell:   shell,
		retry:   newRetryPolicy(retryCfg),
		logger:  logger,
		metrics: metrics,
	}
}

// FetchWithRetry runs the full algorithm for one logical call. Validation
// failures are terminal and surface as a SecurityError with zero I/O
// performed for the rejected input; transport failures are retried up to
// the attempt budget and the last underlying error is surfaced after
// exhaustion.
func (f *RetryFetcher) FetchWithRetry(ctx context.Context, url string, opts *domain.RequestOptions) (*domain.Response, error) {
	if opts == nil {
		opts = &domain.RequestOptions{}
	}

	requestID := uuid.NewString()
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "fetchguard.fetch",
		trace.WithAttributes(attribute.String("request.id", requestID)))
	defer span.End()

	resp, err := f.run(ctx, requestID, url, opts)
	f.metrics.RecordFetch(err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("response.status", resp.StatusCode),
		attribute.Bool("response.fallback", resp.FromFallback),
	)
	return resp, nil
}

func (f *RetryFetcher) run(ctx context.Context, requestID, url string, opts *domain.RequestOptions) (*domain.Response, error) {
	var lastErr error
	maxAttempts := f.retry.maxAttempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Validation is re-run before every attempt, not cached: a
		// misbehaving caller could mutate the header map between attempts.
		if err := f.guard.ValidateURL(url); err != nil {
			f.metrics.RecordRejection("url")
			return nil, domain.NewSecurityError(err)
		}
		if err := f.guard.ValidateHeaders(opts.Headers); err != nil {
			f.metrics.RecordRejection("headers")
			return nil, domain.NewSecurityError(err)
		}

		resp, err := f.native.Fetch(ctx, url, *opts)
		if err == nil {
			f.metrics.RecordAttempt("native", "success")
			return resp, nil
		}
		lastErr = err
		f.metrics.RecordAttempt("native", "failure")
		f.logger.Warn("native fetch failed, falling back to curl",
			"request_id", requestID, "attempt", attempt, "error", err)

		command := BuildCurlCommand(url, *opts)
		if err := f.guard.ValidateCurlCommand(command); err != nil {
			f.metrics.RecordRejection("command")
			return nil, domain.NewSecurityError(err)
		}

		result, execErr := f.shell.Run(ctx, command)
		switch {
		case execErr != nil:
			lastErr = execErr
			f.metrics.RecordAttempt("fallback", "failure")
		case result.Stderr != "":
			lastErr = fmt.Errorf("fallback client reported: %s", truncate(result.Stderr, 200))
			f.metrics.RecordAttempt("fallback", "failure")
		case result.Stdout == "":
			lastErr = domain.ErrEmptyResponse
			f.metrics.RecordAttempt("fallback", "failure")
		default:
			f.metrics.RecordAttempt("fallback", "success")
			return &domain.Response{
				StatusCode:   200,
				Body:         []byte(result.Stdout),
				FromFallback: true,
			}, nil
		}

		f.logger.Warn("fetch attempt failed",
			"request_id", requestID, "attempt", attempt, "max_attempts", maxAttempts, "error", lastErr)

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.retry.backoff(attempt)):
			}
		}
	}

	f.metrics.RecordExhaustion()
	return nil, fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, lastErr)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
