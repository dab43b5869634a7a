//go:build linux

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// ReadLine implements chat.LineReader. ISIG is cleared while editing so that
// Ctrl+C reaches the editor as a byte instead of interrupting the process.
func (t *terminalLines) ReadLine(prompt string) (string, error) {
	f, ok := t.in.(*os.File)
	if !ok || !isTerminal(f) {
		return t.readPlain(prompt)
	}

	fd := int(f.Fd())
	old, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return t.readPlain(prompt)
	}
	raw := *old
	raw.Lflag &^= unix.ICANON | unix.ECHO | unix.ISIG
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, old)
	}()

	return t.edit(prompt, f)
}
