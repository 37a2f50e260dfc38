// Package commands implements the stepd command line.
package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/samiralibabic/stepd/internal/logger"
)

// IO are the streams a command works on; stdout may carry the protocol.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

func NewRootCmd(streams IO) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "stepd",
		Short: "Debug session server driving a step-by-step program debugger over JSON-RPC",
		Long: `stepd loads a program into a sandboxed VM and lets an editor or CLI step
through it with initialize, next, continue, pause and disconnect requests.

Requests arrive as JSON-RPC 2.0 messages on standard input, a TCP listener or a
WebSocket endpoint.`,
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetIn(streams.In)
	rootCmd.SetOut(streams.Err)
	rootCmd.SetErr(streams.Err)

	verbosity := logger.AddLevelFlag(rootCmd.PersistentFlags(), nil)

	var err error
	var cmd *cobra.Command

	if cmd, err = NewServeCommand(streams, verbosity); cmd != nil {
		rootCmd.AddCommand(cmd)
	} else {
		return nil, fmt.Errorf("could not set up 'serve' command: %w", err)
	}

	rootCmd.AddCommand(NewVersionCommand(streams))

	return rootCmd, nil
}
