package chat

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestParseStreamMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want StreamMode
		ok   bool
	}{
		{"", StreamInstant, true},
		{"instant", StreamInstant, true},
		{"Smooth", StreamSmooth, true},
		{"typewriter", StreamTypewriter, true},
		{"quiet", StreamQuiet, true},
		{"loud", "", false},
	}
	for _, tc := range tests {
		got, err := ParseStreamMode(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("ParseStreamMode(%q) = %q, %v; want %q ok=%v", tc.in, got, err, tc.want, tc.ok)
		}
	}
}

func TestStreamInstantWritesImmediately(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewStreamWriter(&buf, StreamInstant)

	if err := w.Write("Hel"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Hel" {
		t.Fatalf("instant mode should flush each piece, got %q", buf.String())
	}
	_ = w.Write("lo")
	text, err := w.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if text != "Hello" || buf.String() != "Hello" {
		t.Fatalf("unexpected text %q / output %q", text, buf.String())
	}
}

func TestStreamQuietHoldsUntilFinish(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewStreamWriter(&buf, StreamQuiet)

	_ = w.Write("a")
	_ = w.Write("b")
	if buf.Len() != 0 {
		t.Fatalf("quiet mode should not write before Finish, got %q", buf.String())
	}
	if _, err := w.Finish(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "ab" {
		t.Fatalf("expected buffered text on finish, got %q", buf.String())
	}
}

func TestStreamSmoothBatches(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewStreamWriter(&buf, StreamSmooth)
	now := time.Unix(0, 0)
	w.now = func() time.Time { return now }
	w.lastFlush = now

	for i := 0; i < w.batch-1; i++ {
		_ = w.Write("x")
	}
	if buf.Len() != 0 {
		t.Fatalf("smooth mode flushed early: %q", buf.String())
	}
	_ = w.Write("y")
	if buf.String() != "xxxxy" {
		t.Fatalf("expected flush at batch size, got %q", buf.String())
	}

	_ = w.Write("z")
	now = now.Add(time.Second)
	_ = w.Write("!")
	if buf.String() != "xxxxyz!" {
		t.Fatalf("expected flush after interval, got %q", buf.String())
	}
}

func TestStreamFinishResetsAnswer(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewStreamWriter(&buf, StreamTypewriter)

	_ = w.Write("één")
	first, _ := w.Finish()
	_ = w.Write("two")
	second, _ := w.Finish()
	if first != "één" || second != "two" {
		t.Fatalf("unexpected answers %q, %q", first, second)
	}
	if buf.String() != "ééntwo" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestInterrupterIdleAction(t *testing.T) {
	t.Parallel()
	idle := 0
	i := NewInterrupter(func() { idle++ })

	i.Interrupt()
	if idle != 1 {
		t.Fatalf("expected idle action, got %d calls", idle)
	}

	ctx, end := i.Begin(context.Background())
	i.Interrupt()
	if ctx.Err() == nil {
		t.Fatal("interrupt during prediction should cancel its context")
	}
	if !i.Interrupted() {
		t.Fatal("expected Interrupted to report true")
	}
	end()
	if idle != 1 {
		t.Fatalf("interrupt during prediction must not run idle action")
	}

	i.Interrupt()
	if idle != 2 {
		t.Fatalf("expected idle action after prediction ended, got %d calls", idle)
	}
}
