package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/samcharles93/chatty/internal/chat"
	"github.com/samcharles93/chatty/internal/engine"
	"github.com/samcharles93/chatty/internal/logger"
	"github.com/samcharles93/chatty/internal/reasoning"
	"github.com/samcharles93/chatty/internal/session"
)

// Server exposes one engine and a session store over HTTP. The engine holds a
// single conversation state, so prompts are served one at a time.
type Server struct {
	eng     engine.Engine
	store   *session.Store
	log     logger.Logger
	metrics *Collector
	reg     *prometheus.Registry
	mu      sync.Mutex
}

func New(eng engine.Engine, store *session.Store, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	metrics := NewCollector()
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics)
	return &Server{eng: eng, store: store, log: log, metrics: metrics, reg: reg}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", metricsHandler(s.reg))
	e.GET("/v1/sessions", s.handleListSessions)
	e.GET("/v1/sessions/:key", s.handleGetSession)
	e.DELETE("/v1/sessions/:key", s.handleDeleteSession)
	e.POST("/v1/sessions/:key/prompt", s.handlePrompt)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "model": s.eng.Model()})
}

func (s *Server) handleListSessions(c *echo.Context) error {
	infos, err := s.store.List()
	if err != nil {
		return writeServerError(c, err.Error())
	}
	out := SessionList{Object: "list", Data: make([]SessionInfo, 0, len(infos))}
	for _, in := range infos {
		out.Data = append(out.Data, toSessionInfo(in))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetSession(c *echo.Context) error {
	info, err := s.store.Stat(c.Param("key"))
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionInfo(info))
}

func (s *Server) handleDeleteSession(c *echo.Context) error {
	key := c.Param("key")
	if err := s.store.Remove(key); err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"key": key, "deleted": true})
}

func (s *Server) handlePrompt(c *echo.Context) error {
	key := c.Param("key")
	if err := session.ValidateKey(key); err != nil {
		return writeBadRequest(c, err.Error())
	}
	req, err := decodeJSON[PromptRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return writeBadRequest(c, "prompt is required")
	}

	resp := PromptResponse{
		ID:      "turn_" + uuid.NewString(),
		Session: key,
		Model:   s.eng.Model(),
	}
	log := s.log.With("session", key, "turn", resp.ID)
	ctx := c.Request().Context()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.busy.Set(1)
	defer s.metrics.busy.Set(0)
	start := time.Now()
	defer func() { s.metrics.promptDuration.Observe(time.Since(start).Seconds()) }()

	s.eng.Reset()
	chat.Restore(s.eng, s.store, key, log)

	if req.Stream {
		return s.streamPrompt(ctx, c, log, req, resp)
	}

	var text strings.Builder
	err = s.eng.Predict(ctx, req.Prompt, func(piece string) error {
		s.metrics.pieces.Inc()
		text.WriteString(piece)
		return nil
	})
	switch {
	case errors.Is(err, context.Canceled):
		resp.Truncated = true
	case err != nil:
		s.countPrompt(false, "engine_error")
		log.Warn("prediction failed", "error", err)
		return writeServerError(c, err.Error())
	}
	if err := s.save(key); err != nil {
		s.countPrompt(false, "save_error")
		log.Error("save session", "error", err)
		return writeServerError(c, err.Error())
	}
	if resp.Truncated {
		s.countPrompt(false, "truncated")
	} else {
		s.countPrompt(false, "ok")
	}
	fillText(&resp, text.String())
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) countPrompt(stream bool, outcome string) {
	s.metrics.prompts.WithLabelValues(promptMode(stream), outcome).Inc()
}

func (s *Server) streamPrompt(ctx context.Context, c *echo.Context, log logger.Logger, req PromptRequest, resp PromptResponse) error {
	sse, err := newSSEWriter(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	c.Response().WriteHeader(http.StatusOK)

	var text strings.Builder
	err = s.eng.Predict(ctx, req.Prompt, func(piece string) error {
		s.metrics.pieces.Inc()
		text.WriteString(piece)
		return sse.send("token", tokenEvent{Text: piece})
	})
	fillText(&resp, text.String())
	switch {
	case errors.Is(err, context.Canceled):
		// client went away
		resp.Truncated = true
	case err != nil:
		s.countPrompt(true, "engine_error")
		log.Warn("prediction failed", "error", err)
		return sse.send("error", ErrorBody{Message: err.Error(), Type: "server_error"})
	}
	if err := s.save(resp.Session); err != nil {
		s.countPrompt(true, "save_error")
		log.Error("save session", "error", err)
		return sse.send("error", ErrorBody{Message: err.Error(), Type: "server_error"})
	}
	if resp.Truncated {
		s.countPrompt(true, "truncated")
		return nil
	}
	s.countPrompt(true, "ok")
	return sse.send("done", resp)
}

// fillText splits <think> reasoning out of the answer.
func fillText(resp *PromptResponse, raw string) {
	split := reasoning.SplitRaw(raw)
	resp.Text = split.Content
	resp.Reasoning = split.Reasoning
}

func (s *Server) save(key string) error {
	state, err := s.eng.SaveState()
	if err != nil {
		return fmt.Errorf("snapshot engine state: %w", err)
	}
	_, err = s.store.Save(key, s.eng.Model(), state)
	return err
}

func writeStoreError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidKey):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
		return writeNotFound(c, err.Error())
	default:
		return writeServerError(c, err.Error())
	}
}

func toSessionInfo(in session.Info) SessionInfo {
	return SessionInfo{Key: in.Key, ID: in.ID, Model: in.Model, SavedAt: in.SavedAt, Size: in.Size}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, fmt.Errorf("decode request: %w", err)
	}
	return out, nil
}
