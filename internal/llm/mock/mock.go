package mock

import (
	"context"

	"github.com/localmind-ai/localmind-backend/internal/llm"
)

// Engine replays a scripted token sequence; tests use it to drive the
// streaming pipeline without a model server.
type Engine struct {
	// Tokens are emitted in order before Err (if any) is returned.
	Tokens []string
	// Err, when set, is returned after the scripted tokens.
	Err error
	// Unloaded makes Loaded() report false.
	Unloaded bool

	// Started, when non-nil, is closed as Complete begins emitting.
	Started chan struct{}
	// Release, when non-nil, gates each token emission.
	Release chan struct{}

	// LastReq records the most recent request for assertions.
	LastReq llm.CompletionRequest
}

func New(tokens ...string) *Engine {
	return &Engine{Tokens: tokens}
}

func (e *Engine) Loaded() bool { return !e.Unloaded }

func (e *Engine) Complete(ctx context.Context, req llm.CompletionRequest, onToken func(token string) error) error {
	e.LastReq = req
	if e.Started != nil {
		close(e.Started)
	}
	for _, tok := range e.Tokens {
		if e.Release != nil {
			select {
			case <-e.Release:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return e.Err
}
