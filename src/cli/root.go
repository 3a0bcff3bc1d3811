package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the root cobra command for the virt-backup CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "virt-backup",
		Short:         "Drive incremental VM backups and checkpoint chains through libvirt",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	addGlobalFlags(cmd)

	cmd.AddCommand(newVersionCmd(stdout))
	cmd.AddCommand(newBackupCmd(stdout, stderr))
	cmd.AddCommand(newCheckpointCmd(stdout, stderr))

	return cmd
}

// Execute runs the CLI with the process stdio.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		// cobra is silenced; report the failure ourselves
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
