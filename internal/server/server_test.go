package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/chatty/internal/engine"
	"github.com/samcharles93/chatty/internal/session"
)

// echoEngine replies "ok:<prompt>" in two pieces; its state is the list of
// prompts seen so far.
type echoEngine struct {
	seen []string
	err  error
	// cut stops after the first piece as if the request context ended.
	cut  bool
}

func (e *echoEngine) Model() string { return "test-model" }

func (e *echoEngine) Predict(ctx context.Context, prompt string, fn engine.TokenFunc) error {
	if e.err != nil {
		return e.err
	}
	for _, p := range []string{"ok:", prompt} {
		if err := fn(p); err != nil {
			return err
		}
		if e.cut {
			return context.Canceled
		}
	}
	e.seen = append(e.seen, prompt)
	return nil
}

func (e *echoEngine) SaveState() ([]byte, error) { return []byte(strings.Join(e.seen, "\n")), nil }

func (e *echoEngine) LoadState(b []byte) error {
	e.seen = strings.Split(string(b), "\n")
	return nil
}

func (e *echoEngine) Reset() { e.seen = nil }

func newTestEcho(t *testing.T, eng engine.Engine) (*echo.Echo, *session.Store) {
	t.Helper()
	store, err := session.Open(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatal(err)
	}
	e := echo.New()
	New(eng, store, nil).Register(e)
	return e, store
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPromptPersistsPerSession(t *testing.T) {
	t.Parallel()
	eng := &echoEngine{}
	e, store := newTestEcho(t, eng)

	rec := do(t, e, http.MethodPost, "/v1/sessions/alpha/prompt", `{"prompt":"one"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	var resp PromptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "ok:one" || resp.Session != "alpha" || resp.Model != "test-model" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.HasPrefix(resp.ID, "turn_") {
		t.Fatalf("unexpected id %q", resp.ID)
	}

	// A different session must not see alpha's state.
	do(t, e, http.MethodPost, "/v1/sessions/beta/prompt", `{"prompt":"other"}`)
	do(t, e, http.MethodPost, "/v1/sessions/alpha/prompt", `{"prompt":"two"}`)

	snap, err := store.Load("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if string(snap.State) != "one\ntwo" {
		t.Fatalf("unexpected alpha state %q", snap.State)
	}
	snap, _ = store.Load("beta")
	if string(snap.State) != "other" {
		t.Fatalf("unexpected beta state %q", snap.State)
	}
}

func TestPromptValidation(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, &echoEngine{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"bad key", "/v1/sessions/bad-key/prompt", `{"prompt":"x"}`},
		{"bad json", "/v1/sessions/ok/prompt", `{not json`},
		{"empty prompt", "/v1/sessions/ok/prompt", `{"prompt":"   "}`},
	}
	for _, tc := range tests {
		rec := do(t, e, http.MethodPost, tc.path, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d body=%s", tc.name, rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "invalid_request_error") {
			t.Errorf("%s: expected error envelope, got %s", tc.name, rec.Body.String())
		}
	}
}

func TestPromptEngineFailure(t *testing.T) {
	t.Parallel()
	e, store := newTestEcho(t, &echoEngine{err: errors.New("engine down")})

	rec := do(t, e, http.MethodPost, "/v1/sessions/x/prompt", `{"prompt":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if _, err := store.Load("x"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("failed prompt should not save, got %v", err)
	}
}

func TestPromptStream(t *testing.T) {
	t.Parallel()
	e, store := newTestEcho(t, &echoEngine{})

	rec := do(t, e, http.MethodPost, "/v1/sessions/s1/prompt", `{"prompt":"hey","stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"event: token\ndata: {\"text\":\"ok:\"}\n\n",
		"event: token\ndata: {\"text\":\"hey\"}\n\n",
		"event: done\n",
		`"text":"ok:hey"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream missing %q in:\n%s", want, body)
		}
	}
	if _, err := store.Load("s1"); err != nil {
		t.Fatalf("expected streamed prompt to save: %v", err)
	}
}

func TestSessionEndpoints(t *testing.T) {
	t.Parallel()
	e, store := newTestEcho(t, &echoEngine{})
	for _, k := range []string{"b", "a"} {
		if _, err := store.Save(k, "test-model", []byte(k)); err != nil {
			t.Fatal(err)
		}
	}

	rec := do(t, e, http.MethodGet, "/v1/sessions", "")
	var list SessionList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Data) != 2 || list.Data[0].Key != "a" || list.Data[1].Key != "b" {
		t.Fatalf("unexpected list %+v", list)
	}

	rec = do(t, e, http.MethodGet, "/v1/sessions/a", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"key":"a"`) {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodGet, "/v1/sessions/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing session, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodDelete, "/v1/sessions/a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, e, http.MethodDelete, "/v1/sessions/a", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, &echoEngine{})
	rec := do(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "test-model") {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, &echoEngine{})
	do(t, e, http.MethodPost, "/v1/sessions/m/prompt", `{"prompt":"hi"}`)
	do(t, e, http.MethodPost, "/v1/sessions/m/prompt", `{"prompt":"again","stream":true}`)

	rec := do(t, e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`chatty_prompts_total{mode="json",outcome="ok"} 1`,
		`chatty_prompts_total{mode="stream",outcome="ok"} 1`,
		"chatty_generated_pieces_total 4",
		"chatty_prompt_duration_seconds_count 2",
		"chatty_engine_busy 0",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestPromptCancelledIsTruncated(t *testing.T) {
	t.Parallel()
	e, store := newTestEcho(t, &echoEngine{cut: true})

	rec := do(t, e, http.MethodPost, "/v1/sessions/c/prompt", `{"prompt":"long"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a cut-off prompt, got %d %s", rec.Code, rec.Body.String())
	}
	var resp PromptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Truncated || resp.Text != "ok:" {
		t.Fatalf("expected truncated partial answer, got %+v", resp)
	}
	if _, err := store.Load("c"); err != nil {
		t.Fatalf("cut-off prompt should still save: %v", err)
	}
}

func TestPromptSplitsReasoning(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, &echoEngine{})

	rec := do(t, e, http.MethodPost, "/v1/sessions/r/prompt", `{"prompt":"<think>plan</think>answer"}`)
	var resp PromptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Text != "ok:answer" || resp.Reasoning != "plan" {
		t.Fatalf("unexpected split %+v", resp)
	}
}
