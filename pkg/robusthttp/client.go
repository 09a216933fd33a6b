package robusthttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type LeveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l LeveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l LeveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

type Option func(*retryablehttp.Client)

func WithMaxRetries(maxRetries int) Option {
	return func(client *retryablehttp.Client) {
		client.RetryMax = maxRetries
	}
}

func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(client *retryablehttp.Client) {
		client.RetryWaitMin = waitMin
		client.RetryWaitMax = waitMax
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(client *retryablehttp.Client) {
		client.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: logger})
	}
}

func WithRetryPolicy(policy retryablehttp.CheckRetry) Option {
	return func(client *retryablehttp.Client) {
		client.CheckRetry = policy
	}
}

// NewClient returns a stdlib *http.Client with retryablehttp logic inside.
//
// Only GET, HEAD, OPTIONS and PUT go through the retry loop: connection
// errors and 5xx responses (except 501) are retried for them. Every other
// method is sent exactly once, so a POST or DELETE the server may already
// have applied is never replayed. 429 is handed back to the caller.
// Intermediate failures are logged at WARN.
func NewClient(options ...Option) *http.Client {
	logger := LeveledSlog{inner: slog.Default().With("subsystem", "RobustHTTPClient")}
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(logger)
	retryClient.CheckRetry = IdempotentRetryPolicy

	for _, option := range options {
		option(retryClient)
	}

	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &methodTransport{
			retry:  &retryablehttp.RoundTripper{Client: retryClient},
			direct: retryClient.HTTPClient.Transport,
		},
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut:
		return true
	}
	return false
}

// methodTransport picks the retrying transport by request method.
type methodTransport struct {
	retry  http.RoundTripper
	direct http.RoundTripper
}

func (t *methodTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if idempotent(req.Method) {
		return t.retry.RoundTrip(req)
	}
	return t.direct.RoundTrip(req)
}

// IdempotentRetryPolicy wraps retryablehttp.DefaultRetryPolicy. It never
// retries 429, nor a response to a non-idempotent method. Transport errors
// carry no request, so NewClient keeps such methods out of the retry loop
// entirely.
func IdempotentRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	if err == nil && resp.Request != nil && !idempotent(resp.Request.Method) {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
