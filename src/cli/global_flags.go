package cli

import (
	"github.com/spf13/cobra"

	"virt-backup/src/safety"
)

// addGlobalFlags adds the persistent connection and safety flags to the
// root command.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("vm", "", "Name of the VM to operate on")
	cmd.PersistentFlags().String("connect", "", "Libvirt connection URI (default qemu:///system)")
	cmd.PersistentFlags().String("socket", "", "Libvirt daemon UNIX socket path override")
	cmd.PersistentFlags().String("config", "", "Tool configuration file")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace|debug|info|warn|error")
	cmd.PersistentFlags().Bool("dry-run", false, "Show planned actions without making changes")
	cmd.PersistentFlags().BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
}

// getSafetyOptions reads global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	dry, _ := cmd.Root().PersistentFlags().GetBool("dry-run")
	yes, _ := cmd.Root().PersistentFlags().GetBool("yes")
	return safety.Options{DryRun: dry, Yes: yes}
}
