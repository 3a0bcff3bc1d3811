// Package backup drives the hypervisor's incremental-backup control
// plane: it validates backup requests, provisions scratch disks,
// quiesces the guest, starts and stops pull-mode backup jobs, and
// maintains the VM's linear checkpoint chain.
package backup

import (
	"errors"

	"github.com/rs/zerolog"

	"virt-backup/src/drives"
	"virt-backup/src/guest"
	"virt-backup/src/nbd"
	"virt-backup/src/scratch"
	"virt-backup/src/virtapi"
)

// Manager runs backup and checkpoint operations for one VM. Every
// public operation is synchronous and holds no internal locks; callers
// serialize operations per VM.
type Manager struct {
	dom       virtapi.Domain
	quiescer  guest.Quiescer
	catalog   drives.Catalog
	scratch   scratch.Provisioner
	runDir    string
	owner     string
	supported bool
	log       zerolog.Logger
}

// Params collects the collaborators a Manager needs. Supported is the
// incremental-backup capability probed once at connect time.
type Params struct {
	Domain    virtapi.Domain
	Quiescer  guest.Quiescer
	Catalog   drives.Catalog
	Scratch   scratch.Provisioner
	RunDir    string
	Supported bool
	Logger    zerolog.Logger
}

func NewManager(p Params) *Manager {
	return &Manager{
		dom:       p.Domain,
		quiescer:  p.Quiescer,
		catalog:   p.Catalog,
		scratch:   p.Scratch,
		runDir:    p.RunDir,
		owner:     p.Domain.Name(),
		supported: p.Supported,
		log:       p.Logger.With().Str("vm", p.Domain.Name()).Logger(),
	}
}

// gate rejects every operation when the connected hypervisor cannot do
// incremental backups.
func (m *Manager) gate() error {
	if !m.supported {
		return newError(KindUnsupported, nil,
			"the connected libvirt does not support incremental backup")
	}
	return nil
}

// StartResult reports a successfully started or inspected session: one
// export URL per disk keyed by image ID, plus the checkpoint descriptor
// when one was requested.
type StartResult struct {
	Disks      map[string]string `json:"disks"`
	Checkpoint string            `json:"checkpoint,omitempty"`
}

// StartBackup validates cfg, prepares scratch disks, quiesces the
// guest, and starts the pull-mode backup job. On success the VM serves
// one NBD export per disk on the session's socket.
//
// Cleanup obligations: any failure after scratch allocation removes
// everything allocated under this backup ID, and once the freeze step
// has been reached the guest is thawed on every path, success or
// failure. A guest may have honored a freeze even when the
// acknowledgment timed out.
func (m *Manager) StartBackup(cfg *BackupConfig) (result *StartResult, err error) {
	if err := m.gate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ToCheckpointID != "" {
		if err := m.verifyParentIsLeaf(cfg.ParentCheckpointID); err != nil {
			return nil, err
		}
	}

	resolved, err := resolveDrives(m.catalog, cfg)
	if err != nil {
		return nil, err
	}

	// Scratch allocation is the first irreversible step. A single
	// deferred rollback covers every error path from here to the end of
	// the call, pre-provisioned and freshly created disks alike.
	defer func() {
		if err != nil {
			m.removeScratchDisks(cfg.BackupID)
		}
	}()
	if err := m.prepareScratchDisks(cfg, resolved); err != nil {
		return nil, err
	}

	defer m.thaw()
	if err := m.freeze(cfg); err != nil {
		return nil, err
	}

	addr := nbd.SocketPath(m.runDir, cfg.BackupID)
	backupXML, err := BuildBackupXML(addr, resolved, cfg.FromCheckpointID)
	if err != nil {
		return nil, newError(KindOperation, err, "failed to build backup descriptor")
	}
	checkpointXML, err := BuildCheckpointXML(cfg, driveMap(resolved))
	if err != nil {
		return nil, err
	}
	m.log.Debug().
		Str("backup_id", cfg.BackupID).
		Str("backup_xml", backupXML).
		Str("checkpoint_xml", checkpointXML).
		Msg("starting backup")

	if err := m.dom.BackupBegin(backupXML, checkpointXML); err != nil {
		var inconsistent *virtapi.InconsistentCheckpointError
		if errors.As(err, &inconsistent) {
			return nil, newError(KindInconsistentCheckpoint, err,
				"checkpoint %s cannot anchor an incremental backup", cfg.FromCheckpointID)
		}
		return nil, newError(KindOperation, err, "failed to start backup %s", cfg.BackupID)
	}
	m.log.Info().
		Str("backup_id", cfg.BackupID).
		Str("socket", addr.Path()).
		Int("disks", len(resolved)).
		Msg("backup started")

	result = &StartResult{Disks: make(map[string]string, len(resolved))}
	for _, drive := range resolved {
		result.Disks[drive.ImageID] = addr.URL(drive.Name)
	}
	m.attachCheckpoint(result, cfg.ToCheckpointID)
	return result, nil
}

// StopBackup ends the VM's backup job and cleans up the session's
// scratch disks. It is idempotent: a missing job, a lost connection,
// and a job that finished racily are all fine.
func (m *Manager) StopBackup(backupID string) error {
	if err := m.gate(); err != nil {
		return err
	}
	// Cleanup runs whatever the abort outcome.
	defer m.removeScratchDisks(backupID)

	if _, err := m.dom.BackupXMLDesc(); err != nil {
		var notFound *virtapi.NotFoundError
		var notConnected *virtapi.NotConnectedError
		if errors.As(err, &notFound) || errors.As(err, &notConnected) {
			m.log.Info().
				Str("backup_id", backupID).
				Msg("no backup job to stop")
			return nil
		}
		return newError(KindOperation, err, "failed to inspect backup job")
	}
	if err := m.dom.AbortBackup(); err != nil {
		var invalid *virtapi.OperationInvalidError
		if errors.As(err, &invalid) {
			// The job finished between the probe and the abort.
			m.log.Debug().Str("backup_id", backupID).Msg("backup job already gone")
			return nil
		}
		return newError(KindOperation, err, "failed to stop backup %s", backupID)
	}
	m.log.Info().Str("backup_id", backupID).Msg("backup stopped")
	return nil
}

// BackupInfo reports the live job's export URLs, keyed by image ID the
// same way a fresh start would report them. checkpointID optionally
// attaches that checkpoint's descriptor.
func (m *Manager) BackupInfo(backupID, checkpointID string) (*StartResult, error) {
	if err := m.gate(); err != nil {
		return nil, err
	}
	raw, err := m.dom.BackupXMLDesc()
	if err != nil {
		var notFound *virtapi.NotFoundError
		if errors.As(err, &notFound) {
			return nil, newError(KindNoSuchBackup, err, "no backup job for %s", backupID)
		}
		return nil, newError(KindOperation, err, "failed to fetch backup job description")
	}
	parsed, err := ParseBackupXML(raw)
	if err != nil {
		return nil, newError(KindOperation, err, "failed to parse backup job description")
	}

	attached, err := m.catalog.Drives()
	if err != nil {
		return nil, newError(KindLookup, err, "failed to list attached drives")
	}
	imageByName := make(map[string]string, len(attached))
	for _, info := range attached {
		imageByName[info.Name] = info.Image
	}

	addr := nbd.UnixAddress(parsed.Socket)
	result := &StartResult{Disks: map[string]string{}}
	for _, disk := range parsed.Disks {
		if disk.Backup == "no" {
			continue
		}
		image, ok := imageByName[disk.Name]
		if !ok {
			return nil, newError(KindLookup, nil, "no attached drive named %s", disk.Name)
		}
		result.Disks[image] = addr.URL(disk.Name)
	}
	m.attachCheckpoint(result, checkpointID)
	return result, nil
}

// verifyParentIsLeaf checks the chain-continuation precondition against
// a fresh topological listing. The chain state is never cached; a stale
// view is exactly how forks happen.
func (m *Manager) verifyParentIsLeaf(parentID string) error {
	names, err := m.dom.ListCheckpoints()
	if err != nil {
		return newError(KindChain, err, "failed to list checkpoints")
	}
	leaf := ""
	if len(names) > 0 {
		leaf = names[len(names)-1]
	}
	if parentID != leaf {
		if leaf == "" {
			return newError(KindChain, nil,
				"parent checkpoint %q requested but the VM has no checkpoints", parentID)
		}
		return newError(KindChain, nil,
			"parent checkpoint %q does not match the current leaf %q", parentID, leaf)
	}
	return nil
}

// freeze quiesces the guest. A failure aborts the session only when the
// request demands consistency; otherwise the backup proceeds
// crash-consistent.
func (m *Manager) freeze(cfg *BackupConfig) error {
	if err := m.quiescer.Freeze(); err != nil {
		if cfg.RequireConsistency {
			return newError(KindOperation, err,
				"failed to freeze guest filesystems and backup %s requires consistency", cfg.BackupID)
		}
		m.log.Warn().Err(err).
			Str("backup_id", cfg.BackupID).
			Msg("guest freeze failed, taking crash-consistent backup")
	}
	return nil
}

// thaw is best-effort: its failure never displaces the operation's
// primary outcome.
func (m *Manager) thaw() {
	if err := m.quiescer.Thaw(); err != nil {
		m.log.Warn().Err(err).Msg("guest thaw failed")
	}
}

// attachCheckpoint adds the checkpoint descriptor to a result,
// best-effort: the backup already succeeded, so a fetch failure is
// logged and the result stays valid without it.
func (m *Manager) attachCheckpoint(result *StartResult, checkpointID string) {
	if checkpointID == "" {
		return
	}
	xmlDesc, err := m.dom.CheckpointXMLDesc(checkpointID)
	if err != nil {
		m.log.Warn().Err(err).
			Str("checkpoint_id", checkpointID).
			Msg("could not fetch checkpoint description")
		return
	}
	result.Checkpoint = xmlDesc
}
