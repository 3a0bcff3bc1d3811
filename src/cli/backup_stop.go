package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newBackupStopCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop BACKUP_ID",
		Short: "Stop a backup session and clean up its scratch disks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backupID := args[0]
			if opts := getSafetyOptions(cmd); opts.DryRun {
				fmt.Fprintf(stdout, "dry-run: would stop backup %s\n", backupID)
				return nil
			}
			mgr, closer, err := buildManager(cmd, stderr)
			if err != nil {
				return err
			}
			defer closer()
			if err := mgr.StopBackup(backupID); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Backup %s stopped\n", backupID)
			return nil
		},
	}
	return cmd
}
