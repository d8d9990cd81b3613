package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Maintain pending login sessions",
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired login sessions now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := adminApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.cleanup.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired session(s)\n", n)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsPruneCmd)
}
