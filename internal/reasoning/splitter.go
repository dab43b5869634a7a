package reasoning

import "strings"

const (
	openTag  = "<think>"
	closeTag = "</think>"
)

type SplitResult struct {
	Content   string
	Reasoning string
}

// SplitRaw separates content from <think>...</think> reasoning in a complete
// answer. An unclosed think block runs to the end of the text.
func SplitRaw(raw string) SplitResult {
	var s Splitter
	c1, r1 := s.Push(raw)
	c2, r2 := s.Flush()
	return SplitResult{Content: c1 + c2, Reasoning: r1 + r2}
}

// Splitter separates reasoning from streamed text. Bytes that could be the
// start of a tag are held back until the next Push or Flush decides them.
type Splitter struct {
	thinking bool
	pending  string
}

// Push consumes one streamed delta and returns the parts that are now known
// to be content and reasoning.
func (s *Splitter) Push(delta string) (content, reasoning string) {
	buf := s.pending + delta
	s.pending = ""

	var c, r strings.Builder
	out := func(text string) {
		if s.thinking {
			r.WriteString(text)
		} else {
			c.WriteString(text)
		}
	}
	for buf != "" {
		tag := openTag
		if s.thinking {
			tag = closeTag
		}
		if i := indexFold(buf, tag); i >= 0 {
			out(buf[:i])
			buf = buf[i+len(tag):]
			s.thinking = !s.thinking
			continue
		}
		keep := partialTagSuffix(buf, tag)
		out(buf[:len(buf)-keep])
		s.pending = buf[len(buf)-keep:]
		break
	}
	return c.String(), r.String()
}

// Flush releases held-back bytes at the end of a stream and resets the
// splitter.
func (s *Splitter) Flush() (content, reasoning string) {
	p, thinking := s.pending, s.thinking
	s.pending, s.thinking = "", false
	if thinking {
		return "", p
	}
	return p, ""
}

func indexFold(s, tag string) int {
	for i := 0; i+len(tag) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(tag)], tag) {
			return i
		}
	}
	return -1
}

// partialTagSuffix returns the length of the longest suffix of s that is a
// proper prefix of tag.
func partialTagSuffix(s, tag string) int {
	for n := min(len(s), len(tag)-1); n > 0; n-- {
		if strings.EqualFold(s[len(s)-n:], tag[:n]) {
			return n
		}
	}
	return 0
}
