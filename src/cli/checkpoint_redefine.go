package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"virt-backup/src/backup"
	"virt-backup/src/safety"
)

func newCheckpointRedefineCmd(stdout, stderr io.Writer) *cobra.Command {
	var requestFile string
	var output string
	cmd := &cobra.Command{
		Use:   "redefine",
		Short: "Re-register checkpoint metadata on a VM, base to leaf",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestFile == "" {
				return errors.New("--request is required (a YAML/JSON list of checkpoint definitions)")
			}
			data, err := os.ReadFile(requestFile)
			if err != nil {
				return err
			}
			cfgs, err := backup.ParseCheckpointConfigs(data)
			if err != nil {
				return err
			}
			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				fmt.Fprintf(stdout, "dry-run: would redefine %d checkpoints\n", len(cfgs))
				return nil
			}
			ok, err := safety.Confirm(opts, os.Stdin, stdout,
				fmt.Sprintf("Redefine %d checkpoints? Existing metadata with the same names is replaced", len(cfgs)))
			if err != nil || !ok {
				return err
			}
			mgr, closer, err := buildManager(cmd, stderr)
			if err != nil {
				return err
			}
			defer closer()
			res, err := mgr.RedefineCheckpoints(cfgs)
			if err != nil {
				return err
			}
			if err := renderChainResult(stdout, output, "redefined", res); err != nil {
				return err
			}
			if res.Failure != nil {
				return res.Failure
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&requestFile, "request", "", "Checkpoint definitions document (YAML or JSON)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}
