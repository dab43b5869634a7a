package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	envChattySessionsDir = "CHATTY_SESSIONS_DIR"
	envXDGDataHome       = "XDG_DATA_HOME"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// stdoutIsTTY is a seam for tests.
var stdoutIsTTY = func() bool { return isTerminal(os.Stdout) }

// resolveSessionsDir picks the sessions directory: flag (or config), then
// $CHATTY_SESSIONS_DIR, then $XDG_DATA_HOME/chatty/sessions, then
// ~/.local/share/chatty/sessions.
func resolveSessionsDir(flag string) (string, error) {
	if dir := strings.TrimSpace(flag); dir != "" {
		return filepath.Clean(dir), nil
	}
	if dir := strings.TrimSpace(os.Getenv(envChattySessionsDir)); dir != "" {
		return filepath.Clean(dir), nil
	}
	if dir := strings.TrimSpace(os.Getenv(envXDGDataHome)); dir != "" {
		return filepath.Join(dir, "chatty", "sessions"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", errors.New("cannot determine sessions directory; set --sessions-dir or " + envChattySessionsDir)
	}
	return filepath.Join(home, ".local", "share", "chatty", "sessions"), nil
}
