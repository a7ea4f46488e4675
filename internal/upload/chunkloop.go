package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// sendNextChunk builds and sends exactly one chunk request (or, for the
// empty-payload special case, the single required request) and classifies
// the response. done is true once the upload has
// completed; body is the response body to hand to the ResponseDecoder.
func (s *Session) sendNextChunk(ctx context.Context) (body io.Reader, done bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, ErrCanceled
	}

	data, start, length, err := s.nextWindow(ctx)
	if err != nil {
		return nil, false, err
	}

	cr := contentRange(start, length, s.total, s.totalKnown)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.sessionURI, bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("upload: building chunk request: %w", err)
	}

	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Range", cr)
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	s.logger.Debug("sending chunk", slog.String("content_range", cr), slog.Int("len", len(data)))

	resp, err := s.transport.Do(ctx, req)
	if err != nil {
		// The transport collaborator already ran the retry policy and, for a
		// 5xx, gave this session's recovery hook (recovery.go) every chance
		// to convert the retry into a status query; reaching here means
		// retries were exhausted, this was a non-retryable 4xx, or the
		// context was canceled.
		return nil, false, s.classifyTransportError(err)
	}
	defer func() {
		if !done {
			resp.Body.Close()
		}
	}()

	if resp.StatusCode == http.StatusPermanentRedirect { // 308 Resume Incomplete
		next, rangeHdr, rerr := s.parseIncomplete(resp)
		if rerr != nil {
			return nil, false, rerr
		}

		s.bytesSent = next
		s.emit(Progress{Status: Uploading, BytesSent: s.bytesSent})
		s.logger.Debug("chunk incomplete", slog.String("range", rangeHdr), slog.Int64("bytes_sent", s.bytesSent))

		return nil, false, nil
	}

	// Any other status reaching here is 2xx (transport.Do only passes 2xx
	// and 308 through without error) — the upload is complete.
	s.bytesSent = start + length
	s.progress = Progress{Status: Uploading, BytesSent: s.bytesSent}

	return resp.Body, true, nil
}

func (s *Session) parseIncomplete(resp *http.Response) (int64, string, error) {
	rangeHdr := resp.Header.Get("Range")
	if rangeHdr == "" {
		return 0, "", fmt.Errorf("%w: 308 response missing Range header", ErrProtocolViolation)
	}

	next, err := parseRangeHeader(rangeHdr)
	if err != nil {
		return 0, "", err
	}

	return next, rangeHdr, nil
}

// nextWindow produces the bytes, absolute start offset, and length for the
// next chunk request, dispatching to the known-size windower or the
// unknown-size chunk buffer, and handling the empty-payload special
// case (exactly one zero-length request when total is known to be 0).
func (s *Session) nextWindow(ctx context.Context) (data []byte, start, length int64, err error) {
	if s.totalKnown && s.total == 0 {
		return nil, 0, 0, nil
	}

	if s.srcAt != nil {
		data, err = knownSizeWindow(ctx, s.srcAt, s.bytesSent, s.chunkSize, s.total)
		if err != nil {
			return nil, 0, 0, err
		}

		return data, s.bytesSent, int64(len(data)), nil
	}

	return s.nextWindowUnknownSize(ctx)
}

// nextWindowUnknownSize runs the chunk-buffer reconcile/fill/probeEOF cycle.
func (s *Session) nextWindowUnknownSize(ctx context.Context) (data []byte, start, length int64, err error) {
	if s.buf == nil {
		s.buf = newChunkBuffer(s.chunkSize)
	}

	from := s.buf.reconcile(s.bytesSent)

	if s.buf.usedLen < len(s.buf.buf) {
		if err := s.buf.fill(ctx, s.src); err != nil {
			return nil, 0, 0, err
		}

		if !s.totalKnown {
			total, known, perr := s.buf.probeEOF(s.src)
			if perr != nil {
				return nil, 0, 0, perr
			}

			if known {
				s.total = total
				s.totalKnown = true
			}
		}
	}

	win := s.buf.window(from)
	start = s.buf.absoluteOffset(from)
	length = int64(len(win))

	out := make([]byte, len(win))
	copy(out, win)

	return out, start, length, nil
}
