package upload

// Status is the tagged status of a Progress event.
type Status int

const (
	// Starting is emitted exactly once, before any chunk request is sent.
	Starting Status = iota
	// Uploading is emitted zero or more times, with strictly non-decreasing BytesSent.
	Uploading
	// Completed is the terminal success status.
	Completed
	// Failed is the terminal failure status; Err is set.
	Failed
)

func (s Status) String() string {
	switch s {
	case Starting:
		return "starting"
	case Uploading:
		return "uploading"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress is a point-in-time snapshot of a Session's transfer state.
type Progress struct {
	Status    Status
	BytesSent int64
	Err       error // set only when Status == Failed
}

// ProgressFunc observes Progress transitions. Invoked synchronously on the
// driver's goroutine — a Session never runs more than one attempt at a
// time, so no locking is needed around the callback list.
type ProgressFunc func(Progress)

// ResponseFunc observes the decoded response body on successful completion.
// Invoked only when a ResponseDecoder is configured, and never on a failed
// upload. value is whatever the ResponseDecoder produced.
type ResponseFunc func(value any)
