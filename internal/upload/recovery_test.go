package upload

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukigw/resumeup/internal/transport"
)

// hookCapturingTransport records whatever hook function registerRecoveryHook
// installs, so the test can invoke it directly with synthetic requests and
// failures without driving a real retry loop.
type hookCapturingTransport struct {
	fakeTransport
	hook         func(req *http.Request, failure error) bool
	deregistered bool
}

func (h *hookCapturingTransport) RegisterBeforeRetry(fn func(req *http.Request, failure error) bool) func() {
	h.hook = fn
	return func() { h.deregistered = true }
}

func TestRegisterRecoveryHook_RewritesOnServerError(t *testing.T) {
	ht := &hookCapturingTransport{}
	s := newFakeSession(nil, 100, true, MinChunkSize, &ht.fakeTransport)
	s.transport = ht
	s.sessionURI = "http://example.test/session/abc"

	deregister := s.registerRecoveryHook()
	require.NotNil(t, ht.hook)

	req, err := http.NewRequest(http.MethodPut, s.sessionURI, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Content-Range", "bytes 50-99/100")

	handled := ht.hook(req, &transport.StatusError{StatusCode: http.StatusServiceUnavailable, Err: transport.ErrServerError})
	assert.True(t, handled)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "bytes */100", req.Header.Get("Content-Range"))
	assert.Equal(t, int64(0), req.ContentLength)

	deregister()
	assert.True(t, ht.deregistered)
}

func TestRegisterRecoveryHook_IgnoresUnrelatedRequest(t *testing.T) {
	ht := &hookCapturingTransport{}
	s := newFakeSession(nil, 100, true, MinChunkSize, &ht.fakeTransport)
	s.transport = ht
	s.sessionURI = "http://example.test/session/abc"

	s.registerRecoveryHook()

	req, err := http.NewRequest(http.MethodPut, "http://example.test/session/other-session", http.NoBody)
	require.NoError(t, err)

	handled := ht.hook(req, &transport.StatusError{StatusCode: http.StatusServiceUnavailable, Err: transport.ErrServerError})
	assert.False(t, handled)
}

func TestRegisterRecoveryHook_IgnoresNonTransientFailure(t *testing.T) {
	ht := &hookCapturingTransport{}
	s := newFakeSession(nil, 100, true, MinChunkSize, &ht.fakeTransport)
	s.transport = ht
	s.sessionURI = "http://example.test/session/abc"

	s.registerRecoveryHook()

	req, err := http.NewRequest(http.MethodPut, s.sessionURI, http.NoBody)
	require.NoError(t, err)

	handled := ht.hook(req, &transport.StatusError{StatusCode: http.StatusBadRequest, Err: transport.ErrBadRequest})
	assert.False(t, handled)
}

func TestIsTransientFailure(t *testing.T) {
	assert.False(t, isTransientFailure(nil))
	assert.False(t, isTransientFailure(ErrCanceled))
	assert.True(t, isTransientFailure(errors.New("connection reset")))
	assert.True(t, isTransientFailure(&transport.StatusError{StatusCode: http.StatusServiceUnavailable, Err: transport.ErrServerError}))
	assert.False(t, isTransientFailure(&transport.StatusError{StatusCode: http.StatusTooManyRequests, Err: transport.ErrThrottled}))
	assert.False(t, isTransientFailure(&transport.StatusError{StatusCode: http.StatusNotFound, Err: transport.ErrNotFound}))
}
