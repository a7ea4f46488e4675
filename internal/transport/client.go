package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Retry policy: base 1s, factor 2x, max 60s, ±25% jitter, max 5 retries.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// BeforeRetryFunc is the handler-chain hook invoked with the
// about-to-be-retried request and the failure that
// triggered the retry. It may mutate req in place (headers, method, body)
// and return true ("handled") to have the mutated request reissued as-is,
// or false to let the normal retry (resend of the original request) proceed.
type BeforeRetryFunc func(req *http.Request, failure error) (handled bool)

// Client is a shared HTTP transport with automatic exponential-backoff retry
// and an extensible before-retry handler chain. Safe for concurrent use by
// multiple independent upload sessions sharing one HTTP client and handler
// chain.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	sleepFunc  func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	hooks      map[int]BeforeRetryFunc
	nextHookID int
}

// New creates a Client. httpClient defaults to http.DefaultClient if nil;
// logger defaults to slog.Default() if nil.
func New(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		sleepFunc:  timeSleep,
		hooks:      make(map[int]BeforeRetryFunc),
	}
}

// SetHTTPClient replaces the underlying http.Client, e.g. to wrap it with an
// oauth2.Transport for bearer-token injection. Must be called before any
// concurrent Do calls begin; it is not itself synchronized.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// RegisterBeforeRetry adds fn to the handler chain and returns a function
// that removes it. The session driver's recovery hook registers at session
// start and deregisters at session end, bounding the hook's lifetime to the
// session's own duration.
//
// The parameter is spelled out as a plain function type (rather than the
// BeforeRetryFunc name above) so that any caller-defined interface requiring
// this method — such as upload.Transport, which cannot import this package
// without an import cycle — is satisfied structurally without needing to
// reference transport.BeforeRetryFunc by name.
func (c *Client) RegisterBeforeRetry(fn func(req *http.Request, failure error) (handled bool)) (deregister func()) {
	c.mu.Lock()
	id := c.nextHookID
	c.nextHookID++
	c.hooks[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.hooks, id)
		c.mu.Unlock()
	}
}

// Do sends req, retrying transport exceptions and the retryable statuses
// 408, 429, 500, 502, 503 and 504 with exponential backoff. req must have GetBody set if it carries a body
// and the caller wants ordinary (non-hook-rewritten) retries to resend it —
// http.NewRequestWithContext sets this automatically for common body types.
//
// 2xx and 308 responses are both returned to the caller untouched: the
// upload session driver, not this transport, classifies 308 (incomplete) vs
// 2xx (complete). Only responses this transport will not
// retry further (non-retryable 4xx, or retryable statuses after maxRetries)
// are turned into a *StatusError.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var attempt int

	for {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("transport: request canceled: %w", ctx.Err())
			}

			if attempt >= maxRetries {
				return nil, fmt.Errorf("transport: %s %s failed after %d retries: %w", req.Method, req.URL, maxRetries, err)
			}

			if retryErr := c.retryAfterFailure(ctx, req, err, attempt); retryErr != nil {
				return nil, retryErr
			}

			attempt++

			continue
		}

		if isSuccessOrIncomplete(resp.StatusCode) {
			return resp, nil
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			body = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: body, Err: classifyStatus(resp.StatusCode)}
			if retryErr := c.retryAfterFailure(ctx, req, statusErr, attempt); retryErr != nil {
				return nil, retryErr
			}

			attempt++

			continue
		}

		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body, Err: classifyStatus(resp.StatusCode)}
	}
}

// isSuccessOrIncomplete reports whether code is a 2xx or the protocol's 308
// Resume Incomplete — both are returned to the caller, not retried here.
func isSuccessOrIncomplete(code int) bool {
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return true
	}

	return code == http.StatusPermanentRedirect // 308
}

// retryAfterFailure runs the before-retry handler chain, then either reuses
// the hook-mutated request or rewinds req's body for an ordinary resend, then
// sleeps the backoff interval.
func (c *Client) retryAfterFailure(ctx context.Context, req *http.Request, failure error, attempt int) error {
	handled := c.runHooks(req, failure)

	if !handled {
		if err := rewindBody(req); err != nil {
			return err
		}
	}

	backoff := calcBackoff(attempt)

	c.logger.Warn("retrying after failure",
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Int("attempt", attempt+1),
		slog.Duration("backoff", backoff),
		slog.Bool("recovery_rewrite", handled),
		slog.String("error", failure.Error()),
	)

	if err := c.sleepFunc(ctx, backoff); err != nil {
		return fmt.Errorf("transport: request canceled: %w", err)
	}

	return nil
}

// runHooks invokes the registered before-retry hooks in registration order,
// stopping at the first one that reports it rewrote the request.
func (c *Client) runHooks(req *http.Request, failure error) bool {
	c.mu.Lock()
	ids := make([]int, 0, len(c.hooks))
	for id := range c.hooks {
		ids = append(ids, id)
	}
	slices.Sort(ids) // ids are handed out in increasing registration order

	hooks := make([]BeforeRetryFunc, 0, len(ids))
	for _, id := range ids {
		hooks = append(hooks, c.hooks[id])
	}
	c.mu.Unlock()

	for _, fn := range hooks {
		if fn(req, failure) {
			return true
		}
	}

	return false
}

// rewindBody resets req.Body from GetBody so an ordinary retry resends the
// full original payload.
func rewindBody(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("transport: rewinding request body for retry: %w", err)
	}

	req.Body = body

	return nil
}

// calcBackoff computes exponential backoff with jitter for the given
// zero-based attempt number.
func calcBackoff(attempt int) time.Duration {
	d := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if d > float64(maxBackoff) {
		d = float64(maxBackoff)
	}

	jitter := d * jitterFraction * (2*rand.Float64() - 1)

	result := time.Duration(d + jitter)
	if result < 0 {
		result = 0
	}

	return result
}

// timeSleep is the default sleepFunc: a context-aware time.Sleep.
func timeSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
