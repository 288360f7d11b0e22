package llm

import (
	"errors"
	"fmt"
)

// GenerationError wraps a failure raised by the engine mid-stream. The
// conversation loop surfaces it as a stream_error event and persists
// nothing for the aborted reply.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	if e == nil || e.Err == nil {
		return "generation failed"
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err carries a *GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
