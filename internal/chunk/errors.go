package chunk

import "fmt"

// IntegrityError reports a chunk or file whose authentication tag did
// not match what the ledger recorded.
type IntegrityError struct {
	Offset int64 // chunk start offset, -1 for a whole-file check
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("integrity check failed for chunk at %d: %s", e.Offset, e.Reason)
	}

	return fmt.Sprintf("integrity check failed: %s", e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}
