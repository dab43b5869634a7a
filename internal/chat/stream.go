package chat

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StreamMode controls how generated text reaches the terminal.
type StreamMode string

const (
	StreamInstant    StreamMode = "instant"
	StreamSmooth     StreamMode = "smooth"
	StreamTypewriter StreamMode = "typewriter"
	StreamQuiet      StreamMode = "quiet"
)

// ParseStreamMode validates a --stream-mode value. Empty means instant.
func ParseStreamMode(s string) (StreamMode, error) {
	switch m := StreamMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return StreamInstant, nil
	case StreamInstant, StreamSmooth, StreamTypewriter, StreamQuiet:
		return m, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (want instant, smooth, typewriter or quiet)", s)
	}
}

// StreamWriter prints generated pieces as they arrive and keeps the full
// text of the current answer.
type StreamWriter struct {
	mode StreamMode
	out  *bufio.Writer

	mu        sync.Mutex
	text      strings.Builder
	pending   int
	lastFlush time.Time
	interval  time.Duration
	batch     int
	now       func() time.Time
}

func NewStreamWriter(w io.Writer, mode StreamMode) *StreamWriter {
	if mode == "" {
		mode = StreamInstant
	}
	return &StreamWriter{
		mode:     mode,
		out:      bufio.NewWriterSize(w, 4096),
		interval: 50 * time.Millisecond,
		batch:    5,
		now:      time.Now,
	}
}

// Write emits one generated piece.
func (w *StreamWriter) Write(piece string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.text.WriteString(piece)
	switch w.mode {
	case StreamQuiet:
		return nil
	case StreamSmooth:
		if _, err := w.out.WriteString(piece); err != nil {
			return err
		}
		w.pending++
		if w.pending >= w.batch || w.now().Sub(w.lastFlush) >= w.interval {
			return w.flushLocked()
		}
		return nil
	case StreamTypewriter:
		for _, r := range piece {
			if _, err := w.out.WriteRune(r); err != nil {
				return err
			}
			if err := w.out.Flush(); err != nil {
				return err
			}
		}
		return nil
	default:
		if _, err := w.out.WriteString(piece); err != nil {
			return err
		}
		return w.out.Flush()
	}
}

// Finish writes anything still buffered and returns the answer text. The
// writer is ready for the next answer afterwards.
func (w *StreamWriter) Finish() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	text := w.text.String()
	w.text.Reset()
	if w.mode == StreamQuiet {
		if _, err := w.out.WriteString(text); err != nil {
			return text, err
		}
	}
	return text, w.flushLocked()
}

func (w *StreamWriter) flushLocked() error {
	w.pending = 0
	w.lastFlush = w.now()
	return w.out.Flush()
}
