package oaihttp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/localmind-ai/localmind-backend/internal/config"
	"github.com/localmind-ai/localmind-backend/internal/llm"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
)

const (
	completionsPath = "/v1/completions"
	healthPath      = "/health"
	probeTimeout    = 2 * time.Second
)

// Engine talks to an OpenAI-compatible completion server (llama.cpp
// --server, vLLM, ...) over streaming HTTP. It satisfies llm.Engine: the
// Complete call blocks on the response body until the server closes the
// stream.
type Engine struct {
	baseURL       string
	apiKey        string
	model         string
	streamTimeout time.Duration

	httpClient *http.Client
	loaded     atomic.Bool
	log        *logger.Logger
}

func New(cfg config.LLMConfig, log *logger.Logger) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
	return &Engine{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:        strings.TrimSpace(cfg.APIKey),
		model:         strings.TrimSpace(cfg.Model),
		streamTimeout: cfg.StreamTimeout,
		httpClient:    &http.Client{Transport: tr},
		log:           log.With("service", "OAIHTTPEngine"),
	}
}

// NewWithHTTPClient is for tests; it swaps in a custom RoundTripper so no
// network is touched.
func NewWithHTTPClient(cfg config.LLMConfig, log *logger.Logger, httpClient *http.Client) *Engine {
	e := New(cfg, log)
	if httpClient != nil {
		e.httpClient = httpClient
	}
	return e
}

// Loaded probes the backend health endpoint until it first succeeds, then
// stays true for the lifetime of the process.
func (e *Engine) Loaded() bool {
	if e == nil || e.baseURL == "" {
		return false
	}
	if e.loaded.Load() {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		e.loaded.Store(true)
		e.log.Info("generation backend is up", "model", e.model)
		return true
	}
	return false
}

type completionRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
}

type completionStreamChunk struct {
	Choices []struct {
		Text  string `json:"text,omitempty"`
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta,omitempty"`
	} `json:"choices"`
	Error any `json:"error,omitempty"`
}

func (e *Engine) Complete(ctx context.Context, req llm.CompletionRequest, onToken func(token string) error) error {
	body := completionRequest{
		Model:       e.model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
		Stream:      true,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	ctx2 := ctx
	if e.streamTimeout > 0 {
		var cancel context.CancelFunc
		ctx2, cancel = context.WithTimeout(ctx, e.streamTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx2, http.MethodPost, e.baseURL+completionsPath, &buf)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return scanSSE(resp.Body, func(data string) error {
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			return nil
		}
		var chunk completionStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip frames we cannot parse; llama.cpp interleaves comments.
			return nil
		}
		if chunk.Error != nil {
			raw, _ := json.Marshal(chunk.Error)
			return fmt.Errorf("upstream stream error: %s", string(raw))
		}
		for _, c := range chunk.Choices {
			token := c.Text
			if token == "" {
				token = c.Delta.Content
			}
			if token == "" {
				continue
			}
			if err := onToken(token); err != nil {
				return err
			}
		}
		return nil
	})
}

// scanSSE feeds each "data:" payload line to onData in arrival order.
func scanSSE(r io.Reader, onData func(data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		if err := onData(strings.TrimPrefix(line, "data:")); err != nil {
			return err
		}
	}
	return scanner.Err()
}
