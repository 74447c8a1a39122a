// Package shared provides common CLI flag definitions and utility functions
// used across netpump's command-line interface.
package shared

import (
	"fmt"
	"strings"
	"time"

	"dominicbreuker/netpump/pkg/config"
	"dominicbreuker/netpump/pkg/log"

	"github.com/urfave/cli/v3"
)

const categoryCommon = "common"

// ConfigFlag is the name of the flag to specify a YAML config file.
const ConfigFlag = "config"

// VerboseFlag is the name of the flag to enable verbose logging.
const VerboseFlag = "verbose"

// MaxFrameSizeFlag is the name of the flag to limit frame sizes in bytes.
const MaxFrameSizeFlag = "max-frame-size"

// KeyFlag is the name of the flag to specify the wss authentication key.
const KeyFlag = "key"

// GetBaseDescription returns the description text for the connect command.
func GetBaseDescription() string {
	return strings.Join([]string{
		"Specify the server like this: ws://127.0.0.1:8080/ws (supports ws|wss)",
		"Every line read from stdin is sent as one binary frame, every frame received is printed as one line.",
		"Settings are read from --config, then NETPUMP_* environment variables, then flags.",
	}, "\n")
}

// GetArgsUsage returns the arguments usage string for the connect command.
func GetArgsUsage() string {
	return strings.Join([]string{
		"url",
	}, " ")
}

// GetCommonFlags returns the CLI flags used by all commands.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     ConfigFlag,
			Aliases:  []string{"c"},
			Usage:    "YAML config file",
			Category: categoryCommon,
			Value:    "",
			Required: false,
		},
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
		&cli.IntFlag{
			Name:     MaxFrameSizeFlag,
			Aliases:  []string{},
			Usage:    "Largest frame in bytes, 0 selects the default",
			Category: categoryCommon,
			Value:    0,
			Required: false,
		},
		&cli.StringFlag{
			Name:     KeyFlag,
			Aliases:  []string{"k"},
			Usage:    "Key for wss mutual authentication, both ends must use the same",
			Category: categoryCommon,
			Value:    "",
			Required: false,
		},
	}
}

const categoryConnect = "connect"

// BackendFlag is the name of the flag to select the transport backend.
const BackendFlag = "backend"

// DriverFlag is the name of the flag to select the WebSocket library.
const DriverFlag = "driver"

// SubprotocolFlag is the name of the flag to request WebSocket subprotocols.
const SubprotocolFlag = "subprotocol"

// SessionIDFlag is the name of the flag to tag received frames.
const SessionIDFlag = "session-id"

// MaxEventsPerTickFlag is the name of the flag bounding events per tick.
const MaxEventsPerTickFlag = "max-events-per-tick"

// MaxBytesPerTickFlag is the name of the flag bounding bytes per tick.
const MaxBytesPerTickFlag = "max-bytes-per-tick"

// RecvBufferSizeFlag is the name of the flag sizing the receive buffer.
const RecvBufferSizeFlag = "recv-buffer-size"

// RecvMinFreeFlag is the name of the flag setting the free space kept
// before each read.
const RecvMinFreeFlag = "recv-min-free"

// DialTimeoutFlag is the name of the flag bounding the handshake.
const DialTimeoutFlag = "dial-timeout"

// MetricsAddrFlag is the name of the flag to serve client metrics.
const MetricsAddrFlag = "metrics-addr"

// LogFileFlag is the name of the flag to specify a frame log file.
const LogFileFlag = "log"

// EnvelopeFlag is the name of the flag to use the opcode frame envelope.
const EnvelopeFlag = "envelope"

// OpcodeFlag is the name of the flag setting the opcode of sent frames.
const OpcodeFlag = "opcode"

// TickRateFlag is the name of the flag setting the pump rate in Hz.
const TickRateFlag = "tick-rate"

// InsecureFlag is the name of the flag to skip certificate checks.
const InsecureFlag = "insecure"

// GetConnectFlags returns the CLI flags specific to connect mode.
func GetConnectFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     BackendFlag,
			Aliases:  []string{"b"},
			Usage:    "Transport backend: threaded|polling",
			Category: categoryConnect,
			Value:    config.BackendThreaded,
			Required: false,
		},
		&cli.StringFlag{
			Name:     DriverFlag,
			Aliases:  []string{"d"},
			Usage:    "WebSocket library: coder|gorilla",
			Category: categoryConnect,
			Value:    config.DriverCoder,
			Required: false,
		},
		&cli.StringSliceFlag{
			Name:     SubprotocolFlag,
			Aliases:  []string{"p"},
			Usage:    "WebSocket subprotocol to request, can be repeated",
			Category: categoryConnect,
			Value:    []string{},
			Required: false,
		},
		&cli.IntFlag{
			Name:     SessionIDFlag,
			Aliases:  []string{},
			Usage:    "Session id received frames are tagged with",
			Category: categoryConnect,
			Value:    0,
			Required: false,
		},
		&cli.IntFlag{
			Name:     MaxEventsPerTickFlag,
			Usage:    "Polling backend: events handled per tick, 0 selects the default",
			Category: categoryConnect,
		},
		&cli.IntFlag{
			Name:     MaxBytesPerTickFlag,
			Usage:    "Polling backend: message bytes handled per tick, 0 selects the default",
			Category: categoryConnect,
		},
		&cli.IntFlag{
			Name:     RecvBufferSizeFlag,
			Usage:    "Threaded backend: initial receive buffer in bytes, 0 selects the default",
			Category: categoryConnect,
		},
		&cli.IntFlag{
			Name:     RecvMinFreeFlag,
			Usage:    "Threaded backend: free bytes kept before each read, 0 selects the default",
			Category: categoryConnect,
		},
		&cli.BoolFlag{
			Name:     InsecureFlag,
			Aliases:  []string{},
			Usage:    "Skip certificate checks for wss URLs",
			Category: categoryConnect,
			Value:    false,
			Required: false,
		},
		&cli.DurationFlag{
			Name:     DialTimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "Handshake timeout",
			Category: categoryConnect,
			Value:    10 * time.Second,
			Required: false,
		},
		&cli.StringFlag{
			Name:     MetricsAddrFlag,
			Aliases:  []string{"m"},
			Usage:    "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9100",
			Category: categoryConnect,
			Value:    "",
			Required: false,
		},
		&cli.StringFlag{
			Name:     LogFileFlag,
			Aliases:  []string{"l"},
			Usage:    "Append a hex dump of every frame to this file",
			Category: categoryConnect,
			Value:    "",
			Required: false,
		},
		&cli.BoolFlag{
			Name:     EnvelopeFlag,
			Aliases:  []string{"e"},
			Usage:    "Send lines as [opcode][payload] frames and print received opcodes",
			Category: categoryConnect,
			Value:    false,
			Required: false,
		},
		&cli.IntFlag{
			Name:     OpcodeFlag,
			Aliases:  []string{},
			Usage:    "Opcode of sent frames with --envelope",
			Category: categoryConnect,
			Value:    0,
			Required: false,
		},
		&cli.IntFlag{
			Name:     TickRateFlag,
			Aliases:  []string{},
			Usage:    "Pump rate in ticks per second",
			Category: categoryConnect,
			Value:    60,
			Required: false,
		},
	}
}

const categoryServe = "serve"

// MaxConnsFlag is the name of the flag limiting concurrent echo connections.
const MaxConnsFlag = "max-conns"

// MetricsFlag is the name of the flag to expose /metrics on the echo server.
const MetricsFlag = "metrics"

// GetServeFlags returns the CLI flags specific to serve mode.
func GetServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     MaxConnsFlag,
			Aliases:  []string{},
			Usage:    "Concurrent connections, 0 selects the default",
			Category: categoryServe,
			Value:    0,
			Required: false,
		},
		&cli.BoolFlag{
			Name:     MetricsFlag,
			Aliases:  []string{},
			Usage:    "Expose Prometheus metrics on /metrics",
			Category: categoryServe,
			Value:    false,
			Required: false,
		},
	}
}

// ApplyClientFlags overrides cfg with every client flag set on cmd.
func ApplyClientFlags(cmd *cli.Command, cfg *config.Client) {
	if cmd.IsSet(VerboseFlag) {
		cfg.Verbose = cmd.Bool(VerboseFlag)
	}
	if cmd.IsSet(MaxFrameSizeFlag) {
		cfg.MaxFrameSize = int(cmd.Int(MaxFrameSizeFlag))
	}
	if cmd.IsSet(BackendFlag) {
		cfg.Backend = cmd.String(BackendFlag)
	}
	if cmd.IsSet(DriverFlag) {
		cfg.Driver = cmd.String(DriverFlag)
	}
	if cmd.IsSet(SubprotocolFlag) {
		cfg.Subprotocols = cmd.StringSlice(SubprotocolFlag)
	}
	if cmd.IsSet(SessionIDFlag) {
		cfg.SessionID = int(cmd.Int(SessionIDFlag))
	}
	if cmd.IsSet(MaxEventsPerTickFlag) {
		cfg.MaxEventsPerTick = int(cmd.Int(MaxEventsPerTickFlag))
	}
	if cmd.IsSet(MaxBytesPerTickFlag) {
		cfg.MaxBytesPerTick = int(cmd.Int(MaxBytesPerTickFlag))
	}
	if cmd.IsSet(RecvBufferSizeFlag) {
		cfg.RecvBufferSize = int(cmd.Int(RecvBufferSizeFlag))
	}
	if cmd.IsSet(RecvMinFreeFlag) {
		cfg.RecvMinFree = int(cmd.Int(RecvMinFreeFlag))
	}
	if cmd.IsSet(DialTimeoutFlag) {
		cfg.DialTimeout = cmd.Duration(DialTimeoutFlag)
	}
	if cmd.IsSet(MetricsAddrFlag) {
		cfg.MetricsAddr = cmd.String(MetricsAddrFlag)
	}
	if cmd.IsSet(KeyFlag) {
		cfg.TLSKey = cmd.String(KeyFlag)
	}
	if cmd.IsSet(InsecureFlag) {
		cfg.Insecure = cmd.Bool(InsecureFlag)
	}
}

// ApplyServerFlags overrides cfg with every server flag set on cmd.
func ApplyServerFlags(cmd *cli.Command, cfg *config.Server) {
	if cmd.IsSet(VerboseFlag) {
		cfg.Verbose = cmd.Bool(VerboseFlag)
	}
	if cmd.IsSet(MaxFrameSizeFlag) {
		cfg.MaxFrameSize = int(cmd.Int(MaxFrameSizeFlag))
	}
	if cmd.IsSet(MaxConnsFlag) {
		cfg.MaxConns = int(cmd.Int(MaxConnsFlag))
	}
	if cmd.IsSet(MetricsFlag) {
		cfg.Metrics = cmd.Bool(MetricsFlag)
	}
	if cmd.IsSet(KeyFlag) {
		cfg.TLSKey = cmd.String(KeyFlag)
	}
}

// ReportValidation prints validation errors and returns an error if there
// were any.
func ReportValidation(errors []error) error {
	if len(errors) == 0 {
		return nil
	}
	log.ErrorMsg("Argument validation errors:\n")
	for _, err := range errors {
		log.ErrorMsg(" - %s\n", err)
	}
	return fmt.Errorf("exiting")
}
