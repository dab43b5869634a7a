package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/ansiterm"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chatty/internal/session"
)

func sessionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect and remove saved sessions",
		Flags: append(storageFlags(), loggingFlags()...),
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List saved sessions",
				Action: func(ctx context.Context, c *cli.Command) error {
					applyEngineConfig(c, LoadConfig())
					ctx, err := withLogger(ctx)
					if err != nil {
						return exitf(2, "%v", err)
					}
					store, err := openStore(ctx)
					if err != nil {
						return exitf(1, "%v", err)
					}
					infos, err := store.List()
					if err != nil {
						return exitf(1, "list sessions: %v", err)
					}
					writeSessionTable(os.Stdout, infos, time.Now())
					return nil
				},
			},
			{
				Name:      "rm",
				Aliases:   []string{"remove"},
				Usage:     "Remove saved sessions",
				ArgsUsage: "<key>...",
				Action: func(ctx context.Context, c *cli.Command) error {
					keys := c.Args().Slice()
					if len(keys) == 0 {
						return exitf(2, "at least one session key is required")
					}
					applyEngineConfig(c, LoadConfig())
					ctx, err := withLogger(ctx)
					if err != nil {
						return exitf(2, "%v", err)
					}
					store, err := openStore(ctx)
					if err != nil {
						return exitf(1, "%v", err)
					}
					for _, k := range keys {
						if err := store.Remove(k); err != nil {
							return exitf(1, "%v", err)
						}
						fmt.Printf("removed session '%s'\n", k)
					}
					return nil
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return cli.ShowSubcommandHelp(c)
		},
	}
}

func writeSessionTable(w io.Writer, infos []session.Info, now time.Time) {
	if len(infos) == 0 {
		_, _ = fmt.Fprintln(w, "no sessions")
		return
	}
	tw := ansiterm.NewTabWriter(w, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tMODEL\tSAVED\tSIZE")
	for _, in := range infos {
		model := in.Model
		if model == "" {
			model = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			in.Key, model, humanize.RelTime(in.SavedAt, now, "ago", "from now"), humanize.IBytes(uint64(in.Size)))
	}
	_ = tw.Flush()
}
