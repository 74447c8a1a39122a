// Package connect implements the connect command, which pumps stdin lines
// to a WebSocket server as binary frames and prints the frames it receives.
package connect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dominicbreuker/netpump/cmd/shared"
	"dominicbreuker/netpump/pkg/config"
	"dominicbreuker/netpump/pkg/entrypoint"

	"github.com/urfave/cli/v3"
)

// GetCommand returns the CLI command for connect mode.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "connect",
		Usage:       "Connect to a WebSocket server",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() > 1 {
				return fmt.Errorf("must provide at most one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
			}

			cfg, err := config.Load(cmd.String(shared.ConfigFlag), config.Default())
			if err != nil {
				return err
			}
			if args.Len() == 1 {
				cfg.URL = args.Get(0)
			}
			shared.ApplyClientFlags(cmd, &cfg)

			errors := config.Validate(&cfg)
			rate := cmd.Int(shared.TickRateFlag)
			if rate < 1 || rate > 1000 {
				errors = append(errors, fmt.Errorf("'--%s' must be between 1 and 1000", shared.TickRateFlag))
			}
			opcode := cmd.Int(shared.OpcodeFlag)
			if opcode < -1<<31 || opcode > 1<<31-1 {
				errors = append(errors, fmt.Errorf("'--%s' must fit in 32 bits", shared.OpcodeFlag))
			}
			if err := shared.ReportValidation(errors); err != nil {
				return err
			}

			opts := entrypoint.ConnectOptions{
				Envelope:     cmd.Bool(shared.EnvelopeFlag),
				Opcode:       int32(opcode),
				FrameLog:     cmd.String(shared.LogFileFlag),
				TickInterval: time.Second / time.Duration(rate),
			}

			return entrypoint.Connect(ctx, &cfg, opts)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetConnectFlags()...)

	return flags
}
