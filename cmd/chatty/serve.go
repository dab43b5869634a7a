package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chatty/internal/logger"
	"github.com/samcharles93/chatty/internal/server"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
	}
	flags = append(flags, engineFlags()...)
	flags = append(flags, storageFlags()...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve sessions over HTTP",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, LoadConfig(), &addr)

			ctx, err := withLogger(ctx)
			if err != nil {
				return exitf(2, "%v", err)
			}
			log := logger.FromContext(ctx)
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			eng, err := newEngine(ctx)
			if err != nil {
				return exitf(2, "%v", err)
			}
			store, err := openStore(ctx)
			if err != nil {
				return exitf(1, "%v", err)
			}

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.New(eng, store, log).Register(e)

			log.Info("starting server", "address", addr, "model", eng.Model(), "sessions", store.Dir())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
