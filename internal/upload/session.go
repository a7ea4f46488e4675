// Package upload implements the resumable chunked upload protocol core:
// range codec, chunk buffer, stream windower, session driver, recovery hook
// and parameter projection.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/haukigw/resumeup/internal/transport"
)

// MinChunkSize is the protocol-defined minimum chunk size (256 KiB). Every
// chunk except the final one must be a multiple of this value.
const MinChunkSize = 256 * 1024

// DefaultChunkSize is used when the caller does not configure one (10 MiB).
const DefaultChunkSize = 10 * 1024 * 1024

// Transport is the HTTP transport collaborator the core requires.
type Transport interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
	RegisterBeforeRetry(fn func(req *http.Request, failure error) bool) (deregister func())
}

// MetadataEncoder serializes the caller's metadata body value into request
// bytes plus a Content-Type. A nil value must produce (nil, "", nil) — no
// body, no metadata content-type.
type MetadataEncoder func(value any) (body io.Reader, contentType string, err error)

// ResponseDecoder decodes the terminal success response body into a typed
// value. Absent (nil), the driver discards the response body.
type ResponseDecoder func(body io.Reader) (any, error)

// ErrorDecoder decodes a non-success response body into a *ServerError.
type ErrorDecoder func(statusCode int, body []byte) (*ServerError, error)

// Session is the unit of one upload attempt. Not reusable: once
// Upload or UploadAsync drives it to a terminal state, construct a new one
// to retry from scratch.
type Session struct {
	transport Transport
	baseURI   string
	path      string
	method    string

	contentType string
	metadata    any
	metaEncoder MetadataEncoder
	respDecoder ResponseDecoder
	errDecoder  ErrorDecoder

	chunkSize int64

	src   io.Reader
	srcAt io.ReaderAt // non-nil only when the source is seekable (known-size regime)

	total      int64
	totalKnown bool

	apiKey string
	params []Param

	progressFns []ProgressFunc
	responseFns []ResponseFunc

	// mutable session state
	sessionURI string
	bytesSent  int64
	progress   Progress
	buf        *chunkBuffer // lazily allocated, unknown-size regime only
	logger     *slog.Logger
}

// Option configures a Session at construction time.
type Option func(*Session) error

// New constructs a Session. path and method describe the initialization
// request; src is the arbitrary byte stream to upload. If src also
// implements io.ReaderAt and total is known (see WithTotalLength), the
// known-size regime is used; otherwise the unknown-size regime with a
// chunk buffer and look-ahead byte is used.
func New(transport Transport, baseURI, path, method string, src io.Reader, contentType string, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: transport is nil", ErrInvalidArgument)
	}

	if src == nil {
		return nil, fmt.Errorf("%w: source stream is nil", ErrInvalidArgument)
	}

	if method == "" {
		return nil, fmt.Errorf("%w: HTTP method is empty", ErrInvalidArgument)
	}

	s := &Session{
		transport:   transport,
		baseURI:     baseURI,
		path:        path,
		method:      method,
		src:         src,
		contentType: contentType,
		chunkSize:   DefaultChunkSize,
		metaEncoder: defaultMetadataEncoder,
		errDecoder:  defaultErrorDecoder,
		logger:      slog.Default(),
	}

	if at, ok := src.(io.ReaderAt); ok {
		s.srcAt = at
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.chunkSize <= 0 || s.chunkSize%MinChunkSize != 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be a positive multiple of %d", ErrInvalidArgument, s.chunkSize, MinChunkSize)
	}

	// Known-size regime requires both a seekable source and a declared total;
	// otherwise fall back to the unknown-size regime even if io.ReaderAt is
	// available, since WithTotalLength was not called.
	if !s.totalKnown {
		s.srcAt = nil
	}

	return s, nil
}

// WithMetadata sets the metadata body value serialized onto the
// initialization request.
func WithMetadata(value any) Option {
	return func(s *Session) error {
		s.metadata = value
		return nil
	}
}

// WithMetadataEncoder overrides the default JSON metadata encoder.
func WithMetadataEncoder(enc MetadataEncoder) Option {
	return func(s *Session) error {
		s.metaEncoder = enc
		return nil
	}
}

// WithResponseDecoder configures the typed-response collaborator. Absent,
// the driver discards the completed upload's response body.
func WithResponseDecoder(dec ResponseDecoder) Option {
	return func(s *Session) error {
		s.respDecoder = dec
		return nil
	}
}

// WithErrorDecoder overrides the default Google-style JSON error envelope decoder.
func WithErrorDecoder(dec ErrorDecoder) Option {
	return func(s *Session) error {
		s.errDecoder = dec
		return nil
	}
}

// WithChunkSize overrides DefaultChunkSize. Must be a positive multiple of MinChunkSize.
func WithChunkSize(n int64) Option {
	return func(s *Session) error {
		s.chunkSize = n
		return nil
	}
}

// WithTotalLength declares the source stream's total length, enabling the
// known-size regime when the source also implements io.ReaderAt.
func WithTotalLength(n int64) Option {
	return func(s *Session) error {
		s.total = n
		s.totalKnown = true
		return nil
	}
}

// WithAPIKey appends an API key as a literal query parameter on the
// initialization request, alongside uploadType=resumable.
func WithAPIKey(key string) Option {
	return func(s *Session) error {
		s.apiKey = key
		return nil
	}
}

// WithParam declares one parameter binding, projected onto the
// initialization request at construction.
func WithParam(p Param) Option {
	return func(s *Session) error {
		s.params = append(s.params, p)
		return nil
	}
}

// WithParamsFromTags enumerates `resumeup:"query|path,name=..."` struct tags
// on a pointer-to-struct value (see params.go) as additional parameter
// bindings, for callers who prefer declarative binding to WithParam.
func WithParamsFromTags(tagged any) Option {
	return func(s *Session) error {
		s.params = append(s.params, structTagParams(tagged)...)
		return nil
	}
}

// OnProgress registers a progress observer, invoked synchronously on the
// driver's goroutine in causal order.
func OnProgress(fn ProgressFunc) Option {
	return func(s *Session) error {
		s.progressFns = append(s.progressFns, fn)
		return nil
	}
}

// OnResponse registers a response-received observer, invoked once on
// successful completion before the terminal Completed progress event, never
// on failure.
func OnResponse(fn ResponseFunc) Option {
	return func(s *Session) error {
		s.responseFns = append(s.responseFns, fn)
		return nil
	}
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) error {
		s.logger = l
		return nil
	}
}

// Progress returns the most recently emitted Progress snapshot.
func (s *Session) Progress() Progress {
	return s.progress
}

// Result is the outcome of UploadAsync.
type Result struct {
	Progress Progress
	Err      error
}

// UploadAsync drives the session to completion on a new goroutine and
// returns a channel that receives exactly one Result.
func (s *Session) UploadAsync(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)

	go func() {
		p, err := s.Upload(ctx)
		ch <- Result{Progress: p, Err: err}
		close(ch)
	}()

	return ch
}

// Upload blocks until the session reaches a terminal state, returning the
// final Progress snapshot. On failure the error is also returned; on
// cancellation the returned error is ErrCanceled itself, and the snapshot's
// Err carries the wrapped cause.
func (s *Session) Upload(ctx context.Context) (Progress, error) {
	s.emit(Progress{Status: Starting})

	if err := s.initialize(ctx); err != nil {
		if errors.Is(err, ErrCanceled) {
			return s.cancel(err)
		}

		return s.fail(err)
	}

	deregister := s.registerRecoveryHook()
	defer deregister()

	for {
		if err := ctx.Err(); err != nil {
			return s.cancel(fmt.Errorf("%w: %v", ErrCanceled, err))
		}

		item, done, err := s.sendNextChunk(ctx)
		if err != nil {
			if errors.Is(err, ErrCanceled) {
				return s.cancel(err)
			}

			return s.fail(err)
		}

		if done {
			return s.complete(item)
		}
	}
}

func (s *Session) fail(err error) (Progress, error) {
	s.progress = Progress{Status: Failed, BytesSent: s.bytesSent, Err: err}
	s.emit(s.progress)

	return s.progress, err
}

// cancel records a cancellation outcome. Cancellation exits without emitting
// Completed; no Failed event is broadcast to progress observers either —
// cancellation is not a failure — but the returned Progress snapshot still
// carries the error for callers inspecting the return value directly.
func (s *Session) cancel(err error) (Progress, error) {
	s.progress = Progress{Status: Failed, BytesSent: s.bytesSent, Err: err}
	return s.progress, ErrCanceled
}

func (s *Session) complete(body io.Reader) (Progress, error) {
	if closer, ok := body.(io.Closer); ok {
		defer closer.Close()
	}

	if body != nil && s.respDecoder != nil {
		value, err := s.respDecoder(body)
		if err != nil {
			return s.fail(fmt.Errorf("%w: decoding response body: %v", ErrProtocolViolation, err))
		}

		for _, fn := range s.responseFns {
			fn(value)
		}
	}

	s.progress = Progress{Status: Completed, BytesSent: s.bytesSent}
	s.emit(s.progress)

	return s.progress, nil
}

func (s *Session) emit(p Progress) {
	s.progress = p
	for _, fn := range s.progressFns {
		fn(p)
	}
}

// initialize sends the initialization request and records the session URI
// from the Location response header.
func (s *Session) initialize(ctx context.Context) error {
	reqURL, err := s.initURL()
	if err != nil {
		return err
	}

	var body io.Reader

	var metaContentType string

	if s.metadata != nil {
		body, metaContentType, err = s.metaEncoder(s.metadata)
		if err != nil {
			return fmt.Errorf("%w: encoding metadata: %v", ErrProtocolViolation, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, s.method, reqURL, body)
	if err != nil {
		return fmt.Errorf("upload: building init request: %w", err)
	}

	if body != nil {
		if b, ok := body.(*bytes.Reader); ok {
			req.GetBody = func() (io.ReadCloser, error) {
				_, _ = b.Seek(0, io.SeekStart)
				return io.NopCloser(b), nil
			}
		}

		if metaContentType != "" {
			req.Header.Set("Content-Type", metaContentType)
		}
	}

	req.Header.Set("X-Upload-Content-Type", s.contentType)

	if s.totalKnown {
		req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(s.total, 10))
	}

	resp, err := s.transport.Do(ctx, req)
	if err != nil {
		return s.classifyTransportError(err)
	}
	defer resp.Body.Close()

	loc := resp.Header.Get("Location")
	if loc == "" {
		return fmt.Errorf("%w: initialization response missing Location header", ErrProtocolViolation)
	}

	s.sessionURI = loc
	s.logger.Debug("upload session initialized", slog.String("session_uri", loc))

	return nil
}

func (s *Session) initURL() (string, error) {
	path, query := projectParams(s.path, s.params)

	query.Set("uploadType", "resumable")

	if s.apiKey != "" {
		query.Set("key", s.apiKey)
	}

	full := s.baseURI + path

	u, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("%w: invalid initialization URL %q: %v", ErrInvalidArgument, full, err)
	}

	existing := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			existing.Set(k, v)
		}
	}

	u.RawQuery = existing.Encode()

	return u.String(), nil
}

// classifyTransportError turns a terminal error from the transport
// collaborator into the taxonomy of outcomes: a canceled context surfaces as
// ErrCanceled regardless of how the transport wrapped it (mid-send
// cancellation never reaches the transport's own retry/backoff path, so it
// comes back as a bare context error rather than a *transport.StatusError);
// a definitive non-2xx/308 response is handed to the error-document decoder
// and surfaced as a *ServerError (the "server error document" branch);
// anything else (a transport-level exception the retry policy gave up on) is
// returned as-is, already a "transient transport" failure that exhausted its
// retries.
func (s *Session) classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}

	var statusErr *transport.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	if s.errDecoder != nil {
		if se, decErr := s.errDecoder(statusErr.StatusCode, statusErr.Body); decErr == nil && se != nil {
			return se
		}
	}

	return &ServerError{StatusCode: statusErr.StatusCode, Message: string(statusErr.Body)}
}
