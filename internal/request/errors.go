package request

import "fmt"

// NetworkError represents a transport-level failure: connection
// errors, timeouts, or a non-success HTTP status.
type NetworkError struct {
	Operation  string // the operation that failed (e.g. "post", "read_body")
	URL        string
	StatusCode int   // HTTP status, 0 for non-HTTP failures
	Err        error // underlying error, if any
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error during %s of %s (HTTP %d)", e.Operation, e.URL, e.StatusCode)
	}

	return fmt.Sprintf("network error during %s of %s: %v", e.Operation, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
