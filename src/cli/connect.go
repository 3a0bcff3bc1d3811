package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"virt-backup/src/backup"
	"virt-backup/src/config"
	"virt-backup/src/drives"
	"virt-backup/src/guest"
	"virt-backup/src/logging"
	"virt-backup/src/scratch/qemuimg"
	"virt-backup/src/virtapi"
)

// loadToolConfig assembles the tool configuration and applies the
// global flag overrides on top.
func loadToolConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if v, _ := flags.GetString("connect"); v != "" {
		cfg.ConnectURI = v
	}
	if v, _ := flags.GetString("socket"); v != "" {
		cfg.LibvirtSocket = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

// buildManager connects to libvirt and wires a backup.Manager for the
// VM named by --vm. The returned closer tears the connection down.
func buildManager(cmd *cobra.Command, stderr io.Writer) (*backup.Manager, func(), error) {
	vmName, _ := cmd.Root().PersistentFlags().GetString("vm")
	if vmName == "" {
		return nil, nil, errors.New("--vm is required")
	}
	cfg, err := loadToolConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(cfg.LogLevel, stderr)

	conn, err := virtapi.Connect(cfg.ConnectURI, cfg.LibvirtSocket)
	if err != nil {
		return nil, nil, err
	}
	dom, err := conn.Lookup(vmName)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	provisioner, err := qemuimg.New(cfg.ScratchRoot, log)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	mgr := backup.NewManager(backup.Params{
		Domain:    dom,
		Quiescer:  guest.NewAgent(dom, cfg.FreezeTimeout.Std(), log),
		Catalog:   drives.NewDomainCatalog(dom),
		Scratch:   provisioner,
		RunDir:    cfg.RunDir,
		Supported: conn.SupportsIncrementalBackup(),
		Logger:    log,
	})
	closer := func() { _ = conn.Close() }
	return mgr, closer, nil
}
