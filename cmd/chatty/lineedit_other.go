//go:build !linux

package main

// ReadLine implements chat.LineReader with plain buffered reads.
func (t *terminalLines) ReadLine(prompt string) (string, error) {
	return t.readPlain(prompt)
}
