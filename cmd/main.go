package main

import (
	"context"
	"os"
	"time"

	"dominicbreuker/netpump/cmd/connect"
	"dominicbreuker/netpump/cmd/serve"
	"dominicbreuker/netpump/cmd/shared"
	"dominicbreuker/netpump/cmd/version"
	"dominicbreuker/netpump/pkg/log"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shared.SetupSignalHandling(cancel, 5*time.Second)

	cmd := &cli.Command{
		Name:  "netpump",
		Usage: "pump binary frames between stdin and a WebSocket server",
		Commands: []*cli.Command{
			connect.GetCommand(),
			serve.GetCommand(),
			version.GetCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.ErrorMsg("%s\n", err)
		os.Exit(1)
	}
}
