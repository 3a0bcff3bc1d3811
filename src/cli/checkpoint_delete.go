package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"virt-backup/src/safety"
)

func newCheckpointDeleteCmd(stdout, stderr io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "delete CHECKPOINT_ID...",
		Short: "Delete checkpoints, base to leaf",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				fmt.Fprintf(stdout, "dry-run: would delete %d checkpoints\n", len(args))
				return nil
			}
			ok, err := safety.Confirm(opts, os.Stdin, stdout,
				fmt.Sprintf("Delete %d checkpoints? Their bitmaps cannot be recovered", len(args)))
			if err != nil || !ok {
				return err
			}
			mgr, closer, err := buildManager(cmd, stderr)
			if err != nil {
				return err
			}
			defer closer()
			res, err := mgr.DeleteCheckpoints(args)
			if err != nil {
				return err
			}
			if err := renderChainResult(stdout, output, "deleted", res); err != nil {
				return err
			}
			if res.Failure != nil {
				return res.Failure
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}
