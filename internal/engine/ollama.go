package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/ollama/ollama/api"
)

const (
	envOllamaHost     = "OLLAMA_HOST"
	defaultOllamaHost = "http://127.0.0.1:11434"
)

// ResolveHost returns the engine base URL from flag, environment or default.
func ResolveHost(flag string) (*url.URL, error) {
	raw := strings.TrimSpace(flag)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv(envOllamaHost))
	}
	if raw == "" {
		raw = defaultOllamaHost
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse engine host %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("engine host %q has no host part", raw)
	}
	return u, nil
}

// ollamaState is the serialized form of an Ollama conversation context.
type ollamaState struct {
	Model   string `json:"model"`
	Context []int  `json:"context"`
}

// Ollama drives a model served by an Ollama-compatible /api/generate
// endpoint. The server returns the encoded conversation as a token context
// on the final message of each generation; that context is the engine state.
type Ollama struct {
	client *api.Client
	opts   Options

	mu      sync.Mutex
	context []int
}

// NewOllama returns an engine talking to base. A nil httpClient uses
// http.DefaultClient.
func NewOllama(base *url.URL, httpClient *http.Client, opts Options) (*Ollama, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("model name is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Ollama{
		client: api.NewClient(base, httpClient),
		opts:   opts.withDefaults(),
	}, nil
}

func (o *Ollama) Model() string { return o.opts.Model }

func (o *Ollama) Predict(ctx context.Context, prompt string, fn TokenFunc) error {
	o.mu.Lock()
	prev := append([]int(nil), o.context...)
	o.mu.Unlock()

	stream := true
	req := &api.GenerateRequest{
		Model:   o.opts.Model,
		Prompt:  prompt,
		Context: prev,
		Stream:  &stream,
		Options: o.requestOptions(),
	}

	var final []int
	done := false
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if resp.Response != "" && fn != nil {
			if err := fn(resp.Response); err != nil {
				return err
			}
		}
		if resp.Done {
			done = true
			final = resp.Context
		}
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if done {
		o.mu.Lock()
		o.context = final
		o.mu.Unlock()
	}
	return nil
}

func (o *Ollama) requestOptions() map[string]any {
	opts := map[string]any{
		"num_predict": o.opts.MaxTokens,
		"temperature": *o.opts.Temperature,
	}
	if o.opts.Seed != nil {
		opts["seed"] = *o.opts.Seed
	}
	return opts
}

func (o *Ollama) SaveState() ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return json.Marshal(ollamaState{Model: o.opts.Model, Context: o.context})
}

func (o *Ollama) LoadState(state []byte) error {
	var st ollamaState
	if err := json.Unmarshal(state, &st); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatibleState, err)
	}
	if st.Model != o.opts.Model {
		return fmt.Errorf("%w: saved for model %q, running %q", ErrIncompatibleState, st.Model, o.opts.Model)
	}
	o.mu.Lock()
	o.context = st.Context
	o.mu.Unlock()
	return nil
}

func (o *Ollama) Reset() {
	o.mu.Lock()
	o.context = nil
	o.mu.Unlock()
}
