package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"virt-backup/src/backup"
)

func newBackupCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{Use: "backup", Short: "Start, stop, and inspect backup sessions"}
	cmd.AddCommand(newBackupStartCmd(stdout, stderr))
	cmd.AddCommand(newBackupStopCmd(stdout, stderr))
	cmd.AddCommand(newBackupInfoCmd(stdout, stderr))
	return cmd
}

func newBackupStartCmd(stdout, stderr io.Writer) *cobra.Command {
	var requestFile string
	var output string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a pull-mode backup session for a VM",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestFile == "" {
				return errors.New("--request is required (a YAML/JSON backup request)")
			}
			data, err := os.ReadFile(requestFile)
			if err != nil {
				return err
			}
			cfg, err := backup.ParseBackupConfig(data)
			if err != nil {
				return err
			}
			if opts := getSafetyOptions(cmd); opts.DryRun {
				fmt.Fprintf(stdout, "dry-run: would start backup %s with %d disks\n",
					cfg.BackupID, len(cfg.Disks))
				return nil
			}
			mgr, closer, err := buildManager(cmd, stderr)
			if err != nil {
				return err
			}
			defer closer()
			res, err := mgr.StartBackup(cfg)
			if err != nil {
				return err
			}
			return renderStartResult(stdout, output, res)
		},
	}
	cmd.Flags().StringVar(&requestFile, "request", "", "Backup request document (YAML or JSON)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}
