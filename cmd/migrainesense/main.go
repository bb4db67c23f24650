package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"migraine-sense/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var (
	name    = "migraine-sense"
	version = "v0.0.1-default"
	commit  = ""

	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to a YAML config file (optional, env settings are used otherwise)",
		Sources: cli.EnvVars(common.EnvConfigFile),
	}

	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level: debug, info, warn, error",
		Value:   common.DefaultLogLevel,
		Sources: cli.EnvVars(common.EnvLogLevel),
	}

	serverFlag = &cli.StringFlag{
		Name:    "server",
		Usage:   "Base URL of a running server",
		Value:   fmt.Sprintf("http://localhost:%d", common.DefaultListenPort),
		Sources: cli.EnvVars(common.EnvServerURL),
	}

	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Request timeout",
		Value: 5 * time.Second,
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format: text, json or yaml",
		Value: formatText,
	}
)

func main() {
	setupLogging(common.DefaultLogLevel, "console")

	app := &cli.Command{
		Name:    name,
		Version: fmt.Sprintf("%s - (commit: %s)", version, commit),
		Usage:   "Migraine subtype classifier",
		Flags: []cli.Flag{
			configFlag,
			logLevelFlag,
		},
		Commands: []*cli.Command{
			serveCmd,
			predictCmd,
			profilesCmd,
			labelsCmd,
			historyCmd,
			watchCmd,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if path := cmd.String(configFlag.Name); path != "" {
				os.Setenv(common.EnvConfigFile, path)
			}
			setupLogging(cmd.String(logLevelFlag.Name), "console")
			return ctx, nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

// setupLogging configures the global zerolog logger. format "json" writes
// structured lines, anything else a console writer on stderr.
func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", name).Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
