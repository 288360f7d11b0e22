package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/localmind-ai/localmind-backend/internal/llm"
	"github.com/localmind-ai/localmind-backend/internal/llm/mock"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func drain(t *testing.T, st *llm.Stream) ([]string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var tokens []string
	for {
		token, ok, err := st.Next(ctx)
		if err != nil {
			return tokens, err
		}
		if !ok {
			return tokens, nil
		}
		tokens = append(tokens, token)
	}
}

func TestGenerateStreamDeliversTokensInOrder(t *testing.T) {
	t.Parallel()
	svc := llm.NewService(mock.New("Hel", "lo", ", ", "world"), testLogger(t))
	st := svc.GenerateStream(context.Background(), llm.CompletionRequest{Prompt: "hi"})

	tokens, err := drain(t, st)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	want := []string{"Hel", "lo", ", ", "world"}
	if len(tokens) != len(want) {
		t.Fatalf("token count: got=%d want=%d (%v)", len(tokens), len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d out of order: got=%q want=%q", i, tokens[i], want[i])
		}
	}
}

func TestGenerateStreamUnloadedEmitsNotice(t *testing.T) {
	t.Parallel()
	svc := llm.NewService(&mock.Engine{Unloaded: true}, testLogger(t))
	st := svc.GenerateStream(context.Background(), llm.CompletionRequest{Prompt: "hi"})

	tokens, err := drain(t, st)
	if err != nil {
		t.Fatalf("unavailability must not be an error: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != llm.UnavailableNotice {
		t.Fatalf("expected the single unavailability notice, got %v", tokens)
	}
}

func TestGenerateStreamSurfacesEngineFailure(t *testing.T) {
	t.Parallel()
	engine := mock.New("partial")
	engine.Err = errors.New("backend fell over")
	svc := llm.NewService(engine, testLogger(t))
	st := svc.GenerateStream(context.Background(), llm.CompletionRequest{Prompt: "hi"})

	tokens, err := drain(t, st)
	if err == nil {
		t.Fatalf("expected a stream error, got tokens %v", tokens)
	}
	if !llm.IsGenerationError(err) {
		t.Fatalf("expected a generation error, got %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "partial" {
		t.Fatalf("tokens before the failure must still arrive: %v", tokens)
	}
}

func TestGenerateStreamStopsOnCancel(t *testing.T) {
	t.Parallel()
	engine := mock.New("one", "two", "three")
	engine.Release = make(chan struct{})
	svc := llm.NewService(engine, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	st := svc.GenerateStream(ctx, llm.CompletionRequest{Prompt: "hi"})

	engine.Release <- struct{}{}
	token, ok, err := st.Next(ctx)
	if err != nil || !ok || token != "one" {
		t.Fatalf("first token: token=%q ok=%v err=%v", token, ok, err)
	}

	cancel()

	// The worker stops between tokens; the consumer observes either the
	// context error or a clean end, never further tokens.
	deadline, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	for {
		token, ok, err := st.Next(deadline)
		if err != nil {
			if errors.Is(err, context.Canceled) || !ok {
				return
			}
			t.Fatalf("unexpected error after cancel: %v", err)
		}
		if !ok {
			return
		}
		if token != "two" {
			t.Fatalf("unexpected token after cancel: %q", token)
		}
	}
}
