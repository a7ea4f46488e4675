package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// defaultMetadataEncoder JSON-encodes value. A nil value never reaches here:
// initialize only calls it when s.metadata != nil.
func defaultMetadataEncoder(value any) (io.Reader, string, error) {
	buf, err := json.Marshal(value)
	if err != nil {
		return nil, "", fmt.Errorf("upload: marshaling metadata: %w", err)
	}

	return bytes.NewReader(buf), "application/json; charset=UTF-8", nil
}

// errorEnvelope is the Google-style JSON error document this protocol uses:
//
//	{"error": {"code": 403, "message": "...", "errors": [{"domain": "...",
//	"reason": "...", "message": "...", "location": "...", "locationType": "..."}]}}
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Domain       string `json:"domain"`
			Reason       string `json:"reason"`
			Message      string `json:"message"`
			Location     string `json:"location"`
			LocationType string `json:"locationType"`
		} `json:"errors"`
	} `json:"error"`
}

// defaultErrorDecoder decodes the Google-style JSON error envelope. If body
// is not that shape, it falls back to a bare ServerError carrying the raw
// body as the message rather than failing outright — a malformed error body
// must not mask the status code that triggered this decode.
func defaultErrorDecoder(statusCode int, body []byte) (*ServerError, error) {
	var env errorEnvelope

	if err := json.Unmarshal(body, &env); err != nil || env.Error.Code == 0 {
		return &ServerError{StatusCode: statusCode, Message: string(body)}, nil
	}

	se := &ServerError{
		StatusCode: statusCode,
		Code:       fmt.Sprintf("%d", env.Error.Code),
		Message:    env.Error.Message,
	}

	for _, e := range env.Error.Errors {
		se.Errors = append(se.Errors, SubError{
			Domain:       e.Domain,
			Reason:       e.Reason,
			Message:      e.Message,
			Location:     e.Location,
			LocationType: e.LocationType,
		})
	}

	return se, nil
}
