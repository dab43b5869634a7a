package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// terminalLines reads prompts from stdin. On a Linux TTY it puts the terminal
// in raw mode and offers cursor movement, word editing and history; elsewhere
// it reads plain lines.
type terminalLines struct {
	out   io.Writer
	in    io.Reader
	plain *bufio.Reader
	hist  history
}

func newTerminalLines(in io.Reader, out io.Writer) *terminalLines {
	return &terminalLines{out: out, in: in, plain: bufio.NewReader(in)}
}

func (t *terminalLines) readPlain(prompt string) (string, error) {
	_, _ = fmt.Fprint(t.out, prompt)
	s, err := t.plain.ReadString('\n')
	if err != nil {
		if err == io.EOF && s != "" {
			return trimTrailingNewline(s), nil
		}
		return "", err
	}
	return trimTrailingNewline(s), nil
}

// edit runs the raw-mode editing loop over r until Enter, Ctrl+C or Ctrl+D
// on an empty line. Ctrl+C and Ctrl+D both end input with io.EOF.
func (t *terminalLines) edit(prompt string, r io.Reader) (string, error) {
	var (
		line   lineBuffer
		esc    int
		escSeq strings.Builder
		buf    [16]byte
		pend   []byte // start of a multi-byte rune split across reads
	)
	t.hist.rewind()

	redraw := func() {
		_, _ = fmt.Fprintf(t.out, "\r%s%s\x1b[K", prompt, line.String())
		if line.cursor < len(line.buf) {
			_, _ = fmt.Fprintf(t.out, "\r%s%s", prompt, string(line.buf[:line.cursor]))
		}
	}

	csi := func(seq string) bool {
		switch seq {
		case "A":
			s, ok := t.hist.prev(line.String())
			if ok {
				line.set(s)
			}
			return ok
		case "B":
			s, ok := t.hist.next()
			if ok {
				line.set(s)
			}
			return ok
		case "D":
			return line.left()
		case "C":
			return line.right()
		case "H":
			line.home()
		case "F":
			line.end()
		case "3~":
			return line.deleteForward()
		case "1;5D", "5D":
			line.wordLeft()
		case "1;5C", "5C":
			line.wordRight()
		case "3;5~":
			line.deleteWordForward()
		default:
			return false
		}
		return true
	}

	_, _ = fmt.Fprint(t.out, prompt)
	for {
		n, err := r.Read(buf[:])
		if err != nil {
			return "", err
		}
		for _, b := range buf[:n] {
			switch esc {
			case 1:
				esc = 0
				switch b {
				case '[':
					esc = 2
					escSeq.Reset()
				case 'b', 'B':
					line.wordLeft()
					redraw()
				case 'f', 'F':
					line.wordRight()
					redraw()
				case 127:
					line.deleteWordBack()
					redraw()
				}
				continue
			case 2:
				escSeq.WriteByte(b)
				if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
					esc = 0
					if csi(escSeq.String()) {
						redraw()
					}
				}
				continue
			}

			if b < 32 || b == 127 {
				pend = pend[:0]
			}
			switch b {
			case 27:
				esc = 1
			case '\r', '\n':
				_, _ = fmt.Fprint(t.out, "\r\n")
				out := line.String()
				t.hist.add(out)
				return out, nil
			case 3: // Ctrl+C
				_, _ = fmt.Fprint(t.out, "^C\r\n")
				return "", io.EOF
			case 4: // Ctrl+D
				if len(line.buf) == 0 {
					_, _ = fmt.Fprint(t.out, "\r\n")
					return "", io.EOF
				}
			case 127, 8:
				if line.backspace() {
					redraw()
				}
			case 1: // Ctrl+A
				line.home()
				redraw()
			case 5: // Ctrl+E
				line.end()
				redraw()
			case 21: // Ctrl+U
				line.killBack()
				redraw()
			case 23: // Ctrl+W
				line.deleteWordBack()
				redraw()
			default:
				if b < 32 {
					continue
				}
				pend = append(pend, b)
				inserted := false
				for len(pend) > 0 && utf8.FullRune(pend) {
					r, size := utf8.DecodeRune(pend)
					pend = pend[size:]
					if r != utf8.RuneError {
						line.insert(r)
						inserted = true
					}
				}
				if inserted {
					redraw()
				}
			}
		}
	}
}

// lineBuffer is the line being edited. The cursor indexes runes.
type lineBuffer struct {
	buf    []rune
	cursor int
}

func (l *lineBuffer) String() string { return string(l.buf) }

func (l *lineBuffer) set(s string) {
	l.buf = append(l.buf[:0], []rune(s)...)
	l.cursor = len(l.buf)
}

func (l *lineBuffer) insert(r rune) {
	l.buf = append(l.buf, 0)
	copy(l.buf[l.cursor+1:], l.buf[l.cursor:])
	l.buf[l.cursor] = r
	l.cursor++
}

func (l *lineBuffer) backspace() bool {
	if l.cursor == 0 {
		return false
	}
	l.buf = append(l.buf[:l.cursor-1], l.buf[l.cursor:]...)
	l.cursor--
	return true
}

func (l *lineBuffer) deleteForward() bool {
	if l.cursor >= len(l.buf) {
		return false
	}
	l.buf = append(l.buf[:l.cursor], l.buf[l.cursor+1:]...)
	return true
}

func (l *lineBuffer) left() bool {
	if l.cursor == 0 {
		return false
	}
	l.cursor--
	return true
}

func (l *lineBuffer) right() bool {
	if l.cursor >= len(l.buf) {
		return false
	}
	l.cursor++
	return true
}

func (l *lineBuffer) home() { l.cursor = 0 }
func (l *lineBuffer) end()  { l.cursor = len(l.buf) }

func (l *lineBuffer) killBack() {
	l.buf = append(l.buf[:0], l.buf[l.cursor:]...)
	l.cursor = 0
}

func isBlank(r rune) bool { return r == ' ' || r == '\t' }

func (l *lineBuffer) wordStart() int {
	i := l.cursor
	for i > 0 && isBlank(l.buf[i-1]) {
		i--
	}
	for i > 0 && !isBlank(l.buf[i-1]) {
		i--
	}
	return i
}

func (l *lineBuffer) wordEnd() int {
	i := l.cursor
	for i < len(l.buf) && isBlank(l.buf[i]) {
		i++
	}
	for i < len(l.buf) && !isBlank(l.buf[i]) {
		i++
	}
	return i
}

func (l *lineBuffer) wordLeft()  { l.cursor = l.wordStart() }
func (l *lineBuffer) wordRight() { l.cursor = l.wordEnd() }

func (l *lineBuffer) deleteWordBack() {
	start := l.wordStart()
	l.buf = append(l.buf[:start], l.buf[l.cursor:]...)
	l.cursor = start
}

func (l *lineBuffer) deleteWordForward() {
	end := l.wordEnd()
	l.buf = append(l.buf[:l.cursor], l.buf[end:]...)
}

// history holds entered prompts for the lifetime of the process.
type history struct {
	entries  []string
	pos      int
	browsing bool
	draft    string
}

func (h *history) add(s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == s {
		return
	}
	h.entries = append(h.entries, s)
}

func (h *history) rewind() {
	h.pos = len(h.entries)
	h.browsing = false
	h.draft = ""
}

func (h *history) prev(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if !h.browsing {
		h.draft = current
		h.browsing = true
		h.pos = len(h.entries)
	}
	if h.pos == 0 {
		return "", false
	}
	h.pos--
	return h.entries[h.pos], true
}

func (h *history) next() (string, bool) {
	if !h.browsing {
		return "", false
	}
	if h.pos < len(h.entries)-1 {
		h.pos++
		return h.entries[h.pos], true
	}
	h.pos = len(h.entries)
	h.browsing = false
	return h.draft, true
}

func trimTrailingNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
