package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCheckpointCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{Use: "checkpoint", Short: "Manage the VM's checkpoint chain"}
	cmd.AddCommand(newCheckpointListCmd(stdout, stderr))
	cmd.AddCommand(newCheckpointDeleteCmd(stdout, stderr))
	cmd.AddCommand(newCheckpointRedefineCmd(stdout, stderr))
	cmd.AddCommand(newCheckpointDumpCmd(stdout, stderr))
	return cmd
}

func newCheckpointListCmd(stdout, stderr io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checkpoints base to leaf",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closer, err := buildManager(cmd, stderr)
			if err != nil {
				return err
			}
			defer closer()
			names, err := mgr.ListCheckpoints()
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(stdout, names)
			}
			for _, name := range names {
				fmt.Fprintln(stdout, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}

func newCheckpointDumpCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump CHECKPOINT_ID",
		Short: "Print one checkpoint's descriptor XML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closer, err := buildManager(cmd, stderr)
			if err != nil {
				return err
			}
			defer closer()
			xmlDesc, err := mgr.DumpCheckpoint(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, xmlDesc)
			return nil
		},
	}
	return cmd
}
