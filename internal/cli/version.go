package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scheduler-cli %s (commit=%s, built=%s, backends=%v)\n", Version, CommitSHA, BuildDate, optimizer.Backends())
		},
	}
}
