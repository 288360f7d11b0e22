package llm

import "context"

type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Engine is the blocking generation primitive. Complete invokes onToken
// for every token in generation order on the calling goroutine and returns
// only when the stream is exhausted or fails; returning an error from
// onToken aborts the call. Implementations are constructed once at startup
// and shared by every session.
type Engine interface {
	// Loaded reports whether the backing model is usable. When false the
	// bridge degrades to a single explanatory pseudo-token instead of
	// calling Complete.
	Loaded() bool
	Complete(ctx context.Context, req CompletionRequest, onToken func(token string) error) error
}
