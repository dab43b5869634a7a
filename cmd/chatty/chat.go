package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chatty/internal/chat"
	"github.com/samcharles93/chatty/internal/logger"
	"github.com/samcharles93/chatty/internal/session"
)

// stdin and stdout are swapped out in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

const chatDescription = `Words after the flags are joined into one prompt. A prompt whose first
word is a command name (serve, sessions, version, help) or that contains
words starting with '-' must follow '--':

   chatty -- what does -i mean`

func chatCmd() *cli.Command {
	var (
		sessionKey    string
		interactive   bool
		hideReasoning bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "session key (letters and digits)",
			Destination: &sessionKey,
		},
		&cli.BoolFlag{
			Name:        "interactive",
			Aliases:     []string{"i"},
			Usage:       "keep reading prompts from stdin",
			Destination: &interactive,
		},
		&cli.StringFlag{
			Name:        "stream-mode",
			Usage:       "output mode (instant, smooth, typewriter, quiet)",
			Value:       string(chat.StreamInstant),
			Destination: &streamMode,
		},
		&cli.BoolFlag{
			Name:        "hide-reasoning",
			Usage:       "do not print <think> blocks from reasoning models",
			Destination: &hideReasoning,
		},
	}
	flags = append(flags, engineFlags()...)
	flags = append(flags, storageFlags()...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:        "chatty",
		Usage:       "Chat with a local language model, keeping its state between runs",
		ArgsUsage:   "[--] [prompt...]",
		Description: chatDescription,
		Flags:       flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyChatConfig(c, cfg)
			if !c.IsSet("hide-reasoning") && cfg.HideReasoning != nil {
				hideReasoning = *cfg.HideReasoning
			}

			ctx, err := withLogger(ctx)
			if err != nil {
				return exitf(2, "%v", err)
			}
			log := logger.FromContext(ctx)

			if sessionKey != "" {
				if err := session.ValidateKey(sessionKey); err != nil {
					return exitf(2, "%v", err)
				}
			}
			mode, err := chat.ParseStreamMode(streamMode)
			if err != nil {
				return exitf(2, "%v", err)
			}

			eng, err := newEngine(ctx)
			if err != nil {
				return exitf(2, "%v", err)
			}
			store, err := openStore(ctx)
			if err != nil {
				return exitf(1, "%v", err)
			}
			log.Debug("chat starting", "model", eng.Model(), "sessions", store.Dir())

			intr := chat.NewInterrupter(nil)
			watchCtx, stop := context.WithCancel(ctx)
			defer stop()
			intr.Watch(watchCtx)

			sess, err := chat.New(chat.Config{
				Engine:        eng,
				Store:         store,
				Key:           sessionKey,
				Out:           stdout,
				Lines:         newTerminalLines(stdin, stdout),
				Log:           log,
				StreamMode:    mode,
				Color:         stdoutIsTTY(),
				Interrupter:   intr,
				HideReasoning: hideReasoning,
			})
			if err != nil {
				return exitf(2, "%v", err)
			}

			prompt := strings.Join(c.Args().Slice(), " ")
			if err := sess.Run(ctx, prompt, interactive); err != nil {
				return exitf(1, "%v", err)
			}
			return nil
		},
	}
}
