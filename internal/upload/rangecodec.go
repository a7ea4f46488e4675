package upload

import (
	"fmt"
	"strconv"
	"strings"
)

// unknownLength is the wire token for "total length not yet known".
const unknownLength = "*"

// formatTotal renders the total-length slot of a Content-Range value: the
// decimal length if known, or the literal "*" otherwise.
func formatTotal(total int64, known bool) string {
	if !known {
		return unknownLength
	}

	return strconv.FormatInt(total, 10)
}

// contentRange builds the outgoing Content-Range header for a chunk covering
// the half-open byte range [start, start+length). The zero-length /
// known-zero-total case is the literal "bytes */0"; otherwise it's
// "bytes {start}-{start+length-1}/{T}".
func contentRange(start, length int64, total int64, totalKnown bool) string {
	if length == 0 && totalKnown && total == 0 {
		return "bytes */0"
	}

	return fmt.Sprintf("bytes %d-%d/%s", start, start+length-1, formatTotal(total, totalKnown))
}

// statusQueryRange builds the Content-Range header for a recovery status
// query: "bytes */{T}" with an empty body.
func statusQueryRange(total int64, totalKnown bool) string {
	return "bytes */" + formatTotal(total, totalKnown)
}

// parseRangeHeader parses an incoming "Range: bytes 0-N" response header
// (sent on a 308) and returns the next byte index (N+1) the server expects.
// Tolerates leading whitespace; requires the "bytes " prefix; locates the
// "-"; the text after it must be a valid decimal. Any other shape is a
// protocol violation.
func parseRangeHeader(header string) (int64, error) {
	s := strings.TrimLeft(header, " \t")

	const prefix = "bytes "
	if !strings.HasPrefix(s, prefix) {
		return 0, fmt.Errorf("%w: Range header missing %q prefix: %q", ErrProtocolViolation, prefix, header)
	}

	s = s[len(prefix):]

	dash := strings.IndexByte(s, '-')
	if dash < 0 {
		return 0, fmt.Errorf("%w: Range header missing '-': %q", ErrProtocolViolation, header)
	}

	endPart := s[dash+1:]
	if slash := strings.IndexByte(endPart, '/'); slash >= 0 {
		endPart = endPart[:slash]
	}

	endPart = strings.TrimSpace(endPart)

	n, err := strconv.ParseInt(endPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: Range header has non-decimal end offset: %q: %v", ErrProtocolViolation, header, err)
	}

	return n + 1, nil
}
