package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samiralibabic/stepd/internal/config"
	"github.com/samiralibabic/stepd/internal/logger"
	"github.com/samiralibabic/stepd/internal/metrics"
	"github.com/samiralibabic/stepd/internal/server"
	"github.com/samiralibabic/stepd/internal/version"
)

type serveFlags struct {
	configPath string
	stdio      bool
	noStdio    bool
	listen     string
	httpListen string
	framing    string
	logFile    string
}

func NewServeCommand(streams IO, verbosity *logger.LevelFlagValue) (*cobra.Command, error) {
	if verbosity == nil {
		return nil, errors.New("verbosity flag is required")
	}
	flags := serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve debug sessions",
		Long: `Serve debug sessions on standard input/output and on any configured
TCP or WebSocket listener. Every connection gets its own session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, streams, verbosity, flags)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.configPath, "config", "", "Path to a TOML or YAML configuration file")
	fs.BoolVar(&flags.stdio, "stdio", false, "Serve a session on standard input/output")
	fs.BoolVar(&flags.noStdio, "no-stdio", false, "Do not serve standard input/output")
	fs.StringVar(&flags.listen, "listen", "", "TCP listen address, e.g. 127.0.0.1:4711")
	fs.StringVar(&flags.httpListen, "http", "", "HTTP listen address for the WebSocket and metrics endpoints")
	fs.StringVar(&flags.framing, "framing", "", "Stream framing: ndjson or header")
	fs.StringVar(&flags.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.MarkFlagsMutuallyExclusive("stdio", "no-stdio")

	return cmd, nil
}

func runServe(cmd *cobra.Command, streams IO, verbosity *logger.LevelFlagValue, flags serveFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, &cfg, flags)
	if v := verbosity.String(); v != "" {
		cfg.Server.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New("stepd", logger.Options{
		Level:   cfg.Server.LogLevel,
		File:    cfg.Server.LogFile,
		Console: streams.Err,
	})
	if err != nil {
		return err
	}
	defer log.Flush()

	svc, err := server.NewService(cfg,
		server.WithLogger(log.Logger),
		server.WithMetrics(metrics.New(nil)),
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	defer svc.Close()

	log.Info("Starting", "version", version.Version, "stdio", cfg.Server.Stdio,
		"framing", cfg.Server.Framing, "listen", cfg.Server.Listen, "http", cfg.Server.HTTPListen)
	if err := server.Run(cmd.Context(), svc, streams.In, streams.Out); err != nil {
		log.Error(err, "Server stopped")
		return err
	}
	log.Info("Stopped")
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, flags serveFlags) {
	fs := cmd.Flags()
	switch {
	case flags.stdio:
		cfg.Server.Stdio = true
	case flags.noStdio:
		cfg.Server.Stdio = false
	case fs.Changed("listen") || fs.Changed("http"):
		// A network listener given on the command line replaces stdio
		// unless stdio is asked for explicitly.
		cfg.Server.Stdio = false
	}
	if flags.listen != "" {
		cfg.Server.Listen = flags.listen
	}
	if flags.httpListen != "" {
		cfg.Server.HTTPListen = flags.httpListen
	}
	if flags.framing != "" {
		cfg.Server.Framing = flags.framing
	}
	if flags.logFile != "" {
		cfg.Server.LogFile = flags.logFile
	}
}
