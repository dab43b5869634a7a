package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chatty/internal/engine"
	"github.com/samcharles93/chatty/internal/logger"
	"github.com/samcharles93/chatty/internal/session"
)

const defaultModel = "wizard-vicuna-uncensored:7b"

var (
	modelName   string
	engineHost  string
	sessionsDir string
	maxTokens   int64
	temperature float64
	seed        int64
	streamMode  string
	logLevel    string
	logFormat   string
	debug       bool
)

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "model name served by the engine",
			Value:       defaultModel,
			Destination: &modelName,
		},
		&cli.StringFlag{
			Name:        "host",
			Usage:       "engine base URL (default $OLLAMA_HOST or http://127.0.0.1:11434)",
			Destination: &engineHost,
		},
		&cli.Int64Flag{
			Name:        "max-tokens",
			Aliases:     []string{"n"},
			Usage:       "maximum tokens generated per prompt",
			Value:       engine.DefaultMaxTokens,
			Destination: &maxTokens,
		},
		&cli.Float64Flag{
			Name:        "temperature",
			Aliases:     []string{"temp", "t"},
			Usage:       "sampling temperature",
			Value:       engine.DefaultTemperature,
			Destination: &temperature,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling seed (-1 = engine default)",
			Value:       -1,
			Destination: &seed,
		},
	}
}

func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sessions-dir",
			Usage:       "directory holding session files (default $" + envChattySessionsDir + ")",
			Destination: &sessionsDir,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "warn",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// withLogger builds the logger from the logging flags and carries it in the
// returned context.
func withLogger(ctx context.Context) (context.Context, error) {
	level := logLevel
	if debug {
		level = "debug"
	}
	log, err := logger.Setup(os.Stderr, logFormat, level)
	if err != nil {
		return ctx, err
	}
	return logger.WithContext(ctx, log), nil
}

func newEngine(ctx context.Context) (*engine.Ollama, error) {
	base, err := engine.ResolveHost(engineHost)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("engine configured", "host", base.String(), "model", modelName)
	opts := engine.Options{
		Model:       modelName,
		MaxTokens:   int(maxTokens),
		Temperature: &temperature,
	}
	if seed >= 0 {
		opts.Seed = &seed
	}
	return engine.NewOllama(base, http.DefaultClient, opts)
}

func openStore(ctx context.Context) (*session.Store, error) {
	dir, err := resolveSessionsDir(sessionsDir)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("sessions directory", "dir", dir)
	return session.Open(dir)
}

func exitf(code int, format string, args ...any) error {
	return cli.Exit(fmt.Sprintf("error: "+format, args...), code)
}
