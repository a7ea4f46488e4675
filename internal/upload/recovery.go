package upload

import (
	"errors"
	"io"
	"net/http"

	"github.com/haukigw/resumeup/internal/transport"
)

// registerRecoveryHook installs this session's recovery hook on the shared
// transport for the session's duration and returns the deregister function
// the caller must invoke on session end.
//
// The hook fires only when all three conditions hold: the failing request's
// URL equals the current session URI (it may otherwise see requests
// belonging to unrelated concurrent sessions sharing the same transport),
// the failure is a 5xx response or a transport-level exception (never a
// cancellation — ctx.Err() is checked first), and the caller reaches this
// hook only on a request the transport has already decided is retryable.
// When all hold, it rewrites the in-flight request into a status query:
// clear headers, method PUT, empty body, Content-Range: bytes */{T}.
func (s *Session) registerRecoveryHook() func() {
	return s.transport.RegisterBeforeRetry(func(req *http.Request, failure error) bool {
		if req.URL.String() != s.sessionURI {
			return false
		}

		if !isTransientFailure(failure) {
			return false
		}

		req.Header = http.Header{}
		req.Method = http.MethodPut
		req.Body = http.NoBody
		req.ContentLength = 0
		req.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
		req.Header.Set("Content-Range", statusQueryRange(s.total, s.totalKnown))

		return true
	})
}

// isTransientFailure reports whether failure is the kind the recovery hook
// should react to: a 5xx response, or a transport-level exception that never
// got a status code at all (e.g. connection reset). 4xx statuses such as 408
// or 429 — retryable at the transport layer, but not a 5xx — do not trigger
// a rewrite into a status query.
func isTransientFailure(failure error) bool {
	if failure == nil || failure == ErrCanceled {
		return false
	}

	var statusErr *transport.StatusError
	if errors.As(failure, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}

	return true
}
