package llm

import (
	"context"
	"errors"

	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
)

// UnavailableNotice is the single pseudo-token emitted when no model is
// loaded. It flows through the normal token path, so the loop persists it
// like any other completed reply.
const UnavailableNotice = "Error: Model not loaded. Please check model path."

// tokenBuffer sizes the handoff channel between the producing worker and
// the consuming connection loop. The worker blocks once the consumer falls
// this far behind, and unblocks on cancellation.
const tokenBuffer = 64

// Service bridges the blocking engine onto channel-consuming callers.
// One Service is shared process-wide; each GenerateStream call gets its
// own worker goroutine and handoff channel.
type Service struct {
	engine Engine
	log    *logger.Logger
}

func NewService(engine Engine, log *logger.Logger) *Service {
	return &Service{engine: engine, log: log.With("service", "LLMService")}
}

func (s *Service) Loaded() bool {
	return s.engine != nil && s.engine.Loaded()
}

type streamItem struct {
	token string
	err   error
}

// Stream is one finite, non-restartable token sequence. Tokens arrive in
// exactly the order the engine produced them; the channel closing is the
// completion sentinel, and an error item terminates the sequence.
type Stream struct {
	items chan streamItem
}

// Next blocks until the next token, the end of the stream, or ctx
// cancellation. ok is false once the stream is exhausted.
func (st *Stream) Next(ctx context.Context) (token string, ok bool, err error) {
	select {
	case it, open := <-st.items:
		if !open {
			return "", false, nil
		}
		if it.err != nil {
			return "", false, it.err
		}
		return it.token, true, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// GenerateStream starts a generation worker and returns its stream. The
// worker forwards each token through the handoff channel and closes it on
// completion; engine failures surface as a *GenerationError item. When ctx
// is canceled (consumer gone) the worker stops between tokens instead of
// running to exhaustion.
func (s *Service) GenerateStream(ctx context.Context, req CompletionRequest) *Stream {
	st := &Stream{items: make(chan streamItem, tokenBuffer)}

	if !s.Loaded() {
		s.log.Warn("generation requested with no model loaded")
		st.items <- streamItem{token: UnavailableNotice}
		close(st.items)
		return st
	}

	go func() {
		defer close(st.items)
		err := s.engine.Complete(ctx, req, func(token string) error {
			select {
			case st.items <- streamItem{token: token}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.log.Debug("generation canceled", "error", err)
			return
		}
		s.log.Error("generation failed", "error", err)
		select {
		case st.items <- streamItem{err: &GenerationError{Err: err}}:
		case <-ctx.Done():
		}
	}()

	return st
}
