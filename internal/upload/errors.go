package upload

import (
	"errors"
	"fmt"
)

// Sentinel errors for classifying upload outcomes. Use errors.Is to classify.
var (
	// ErrCanceled is returned when the caller's context is canceled mid-session.
	ErrCanceled = errors.New("upload: canceled")

	// ErrProtocolViolation covers a malformed Location/Range header or a
	// missing required header from the server — always fatal.
	ErrProtocolViolation = errors.New("upload: protocol violation")

	// ErrInvalidArgument covers caller misuse caught at construction time:
	// nil stream, empty HTTP method, non-positive or non-multiple chunk size.
	ErrInvalidArgument = errors.New("upload: invalid argument")
)

// ServerError is a non-success response (a 4xx, or a 5xx the transport
// stopped retrying) in the structured form the error-document collaborator
// decodes it into. Its Error() text renders as
// "Message[..] Location[..] Reason[..] Domain[..]" for the first
// sub-error in the envelope.
type ServerError struct {
	StatusCode int
	Code       string
	Message    string
	Errors     []SubError
}

// SubError is one entry of the server's structured error envelope.
type SubError struct {
	Domain       string
	Reason       string
	Message      string
	Location     string
	LocationType string
}

func (e *ServerError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("upload: server error %d: %s", e.StatusCode, e.Message)
	}

	first := e.Errors[0]

	return fmt.Sprintf(
		"upload: server error %d: Message[%s] Location[%s - %s] Reason[%s] Domain[%s]",
		e.StatusCode, first.Message, first.Location, first.LocationType, first.Reason, first.Domain,
	)
}

// ServerError has no Unwrap method: it wraps no sentinel error, so
// StatusCode is the classification surface instead of errors.Is.
