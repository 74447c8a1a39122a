// Package serve implements the serve command, a WebSocket echo server to
// test clients against.
package serve

import (
	"context"
	"fmt"
	"strings"

	"dominicbreuker/netpump/cmd/shared"
	"dominicbreuker/netpump/pkg/config"
	"dominicbreuker/netpump/pkg/entrypoint"

	"github.com/urfave/cli/v3"
)

// GetCommand returns the CLI command for serve mode.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Run a WebSocket echo server",
		Description: "Specify where to listen like this: ws://127.0.0.1:8080 (supports ws|wss, omit the host to bind all interfaces).\nClients connect to /ws and /health answers OK. With --metrics the server also serves /metrics.\nWith wss and --key, only clients using the same key are accepted.",
		ArgsUsage:   "listen",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("must provide exactly one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
			}

			host, port, tls, err := shared.ParseListen(args.Get(0))
			if err != nil {
				return fmt.Errorf("parsing listen address: %s", err)
			}

			cfg, err := config.Load(cmd.String(shared.ConfigFlag), config.Server{})
			if err != nil {
				return err
			}
			cfg.Host = host
			cfg.Port = port
			cfg.TLS = tls
			shared.ApplyServerFlags(cmd, &cfg)

			if err := shared.ReportValidation(config.Validate(&cfg)); err != nil {
				return err
			}

			return entrypoint.Serve(ctx, &cfg)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetServeFlags()...)

	return flags
}
