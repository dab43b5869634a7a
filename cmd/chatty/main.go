package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chatty/internal/version"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	app := chatCmd()
	app.Version = version.String()
	app.Commands = []*cli.Command{
		serveCmd(),
		sessionsCmd(),
		versionCmd(),
	}
	return app
}
