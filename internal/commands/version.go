package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samiralibabic/stepd/internal/version"
)

func NewVersionCommand(streams IO) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the stepd version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			v := version.Version
			if version.CommitHash != "" {
				v += " (" + version.CommitHash + ")"
			}
			_, err := fmt.Fprintln(streams.Out, "stepd", v)
			return err
		},
	}
}
