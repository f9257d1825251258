package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stdutil/dashhttp"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dashreq %s (modified %s)\n",
				dashhttp.REQUEST_VERSION, dashhttp.REQUEST_MODIFIED)
		},
	}
}
