package domain

import "fmt"

// BatchValidationError reports the first invalid tuple in a worksheet batch.
// The whole batch is rejected before any write, so Index always identifies a
// tuple the caller can correct and resubmit.
type BatchValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *BatchValidationError) Error() string {
	return fmt.Sprintf("worksheet tuple %d: %s %s", e.Index, e.Field, e.Reason)
}
