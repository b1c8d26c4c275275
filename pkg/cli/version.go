package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func NewVersionCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":   cliVersion,
				"buildDate": cliBuildDate,
				"gitCommit": cliGitCommit,
			}
			return root.OutputOptions().Print(info, func(w io.Writer) {
				fmt.Fprintf(w, "renderpilot version %s\n", cliVersion)
				fmt.Fprintf(w, "  Commit: %s\n", cliGitCommit)
				fmt.Fprintf(w, "  Built:  %s\n", cliBuildDate)
			})
		},
	}
}
