package cli

import (
	"io"

	"github.com/spf13/cobra"
)

func newBackupInfoCmd(stdout, stderr io.Writer) *cobra.Command {
	var checkpointID string
	var output string
	cmd := &cobra.Command{
		Use:   "info BACKUP_ID",
		Short: "Show the export URLs of a running backup session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closer, err := buildManager(cmd, stderr)
			if err != nil {
				return err
			}
			defer closer()
			res, err := mgr.BackupInfo(args[0], checkpointID)
			if err != nil {
				return err
			}
			return renderStartResult(stdout, output, res)
		},
	}
	cmd.Flags().StringVar(&checkpointID, "checkpoint", "", "Also fetch this checkpoint's descriptor")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}
