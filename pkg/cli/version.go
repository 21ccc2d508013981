package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if g.jsonOutput {
				return json.NewEncoder(out).Encode(map[string]string{
					"version":   Version,
					"commit":    Commit,
					"buildDate": BuildDate,
					"go":        runtime.Version(),
				})
			}
			fmt.Fprintf(out, "wsmock %s (commit %s, built %s, %s)\n", Version, Commit, BuildDate, runtime.Version())
			return nil
		},
	}
}
