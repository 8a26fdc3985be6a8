package handle

import "fmt"

// DuplicateError reports a failed dup or dup3 call.
type DuplicateError struct {
	// SourceFD is the descriptor being duplicated.
	SourceFD int
	// Target describes where the duplicate was headed, e.g. "new
	// descriptor" for dup or "descriptor 7" for dup3.
	Target string
	// Err is the underlying OS error.
	Err error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("handle: duplicate fd %d to %s: %v", e.SourceFD, e.Target, e.Err)
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}
