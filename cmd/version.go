package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/testwise/runcore/lib/consts"
)

func newVersionCommand(_ *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "show version details",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "runcore v%s (%s, %s/%s)\n",
				consts.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
