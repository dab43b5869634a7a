package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/juju/ansiterm"

	"github.com/samcharles93/chatty/internal/engine"
	"github.com/samcharles93/chatty/internal/logger"
	"github.com/samcharles93/chatty/internal/reasoning"
	"github.com/samcharles93/chatty/internal/session"
)

const promptLabel = "Q:"

const (
	cmdExit  = "/exit"
	cmdReset = "/reset"
)

// LineReader reads one line of user input after showing prompt. io.EOF ends
// the interactive loop.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Config wires a Session. Key is the session key given on the command line,
// empty when none was.
type Config struct {
	Engine      engine.Engine
	Store       *session.Store
	Key         string
	Out         io.Writer
	Lines       LineReader
	Log         logger.Logger
	StreamMode  StreamMode
	Color       bool
	Interrupter *Interrupter

	// HideReasoning drops <think> blocks from printed answers. The engine
	// state still carries them.
	HideReasoning bool
}

// Session runs prompts against one engine and persists its state under one
// session key after every prompt.
type Session struct {
	eng      engine.Engine
	store    *session.Store
	key      string
	explicit bool
	out      io.Writer
	lines    LineReader
	log      logger.Logger
	stream   *StreamWriter
	color    bool
	intr     *Interrupter
	think    *reasoning.Splitter
}

func New(cfg Config) (*Session, error) {
	if cfg.Engine == nil {
		return nil, errors.New("chat: engine is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("chat: session store is required")
	}
	key := cfg.Key
	if key == "" {
		key = session.DefaultKey
	}
	if err := session.ValidateKey(key); err != nil {
		return nil, err
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}
	if cfg.Interrupter == nil {
		cfg.Interrupter = NewInterrupter(nil)
	}
	var think *reasoning.Splitter
	if cfg.HideReasoning {
		think = &reasoning.Splitter{}
	}
	return &Session{
		eng:      cfg.Engine,
		store:    cfg.Store,
		key:      key,
		explicit: cfg.Key != "",
		out:      cfg.Out,
		lines:    cfg.Lines,
		log:      cfg.Log.With("session", key),
		stream:   NewStreamWriter(cfg.Out, cfg.StreamMode),
		color:    cfg.Color,
		intr:     cfg.Interrupter,
		think:    think,
	}, nil
}

// Restore loads the stored snapshot into the engine. Any failure leaves the
// engine as it was.
func (s *Session) Restore() bool {
	return Restore(s.eng, s.store, s.key, s.log)
}

// Restore loads the snapshot stored under key into eng, reporting whether it
// did. Missing, unreadable and incompatible snapshots are ignored.
func Restore(eng engine.Engine, store *session.Store, key string, log logger.Logger) bool {
	snap, err := store.Load(key)
	if err != nil {
		log.Debug("session not restored", "error", err)
		return false
	}
	if err := eng.LoadState(snap.State); err != nil {
		log.Debug("session state rejected", "id", snap.ID, "error", err)
		return false
	}
	log.Debug("session restored", "id", snap.ID, "saved_at", snap.SavedAt)
	return true
}

// Save persists the engine state under the session key.
func (s *Session) Save() error {
	state, err := s.eng.SaveState()
	if err != nil {
		return fmt.Errorf("snapshot engine state: %w", err)
	}
	snap, err := s.store.Save(s.key, s.eng.Model(), state)
	if err != nil {
		return err
	}
	s.log.Debug("session saved", "id", snap.ID, "bytes", len(state))
	return nil
}

// Execute streams the answer to prompt and saves the resulting state. An
// interrupt ends generation early without error.
func (s *Session) Execute(ctx context.Context, prompt string) error {
	pctx, end := s.intr.Begin(ctx)
	err := s.eng.Predict(pctx, prompt, s.emit)
	end()

	var flushErr error
	if s.think != nil {
		if content, _ := s.think.Flush(); content != "" {
			flushErr = s.stream.Write(content)
		}
	}
	text, finishErr := s.stream.Finish()
	if flushErr == nil {
		flushErr = finishErr
	}
	if err != nil && errors.Is(err, context.Canceled) && s.intr.Interrupted() && ctx.Err() == nil {
		s.log.Debug("generation interrupted", "chars", len(text))
		err = nil
	}
	if err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}
	return s.Save()
}

func (s *Session) emit(piece string) error {
	if s.think == nil {
		return s.stream.Write(piece)
	}
	content, _ := s.think.Push(piece)
	if content == "" {
		return nil
	}
	return s.stream.Write(content)
}

// Run executes prompt when non-empty and then, if interactive or prompt is
// empty, reads further prompts until EOF, Ctrl+C at the prompt or /exit.
func (s *Session) Run(ctx context.Context, prompt string, interactive bool) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		interactive = true
	}
	if s.explicit {
		_, _ = fmt.Fprintf(s.out, "using session '%s'\n", s.key)
	}
	s.Restore()

	if prompt != "" {
		_, _ = fmt.Fprintf(s.out, "%s %s\n", s.label(promptLabel), prompt)
		if err := s.Execute(ctx, prompt); err != nil {
			return err
		}
		_, _ = fmt.Fprint(s.out, "\n\n")
	}

	if interactive {
		if err := s.loop(ctx); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintln(s.out)
	return nil
}

func (s *Session) loop(ctx context.Context) error {
	if s.lines == nil {
		return errors.New("chat: interactive mode needs a line reader")
	}
	label := s.label(promptLabel + " ")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := s.lines.ReadLine(label)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read prompt: %w", err)
		}
		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case cmdExit:
			return nil
		case cmdReset:
			s.eng.Reset()
			if err := s.Save(); err != nil {
				s.log.Error("reset session", "error", err)
			}
			_, _ = fmt.Fprintf(s.out, "session '%s' reset\n", s.key)
			continue
		}

		if err := s.Execute(ctx, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("prompt failed", "error", err)
		}
		_, _ = fmt.Fprint(s.out, "\n\n")
	}
}

func (s *Session) label(text string) string {
	var buf bytes.Buffer
	w := ansiterm.NewWriter(&buf)
	w.SetColorCapable(s.color)
	ansiterm.Foreground(ansiterm.Green).Fprintf(w, "%s", text)
	return buf.String()
}
