package backup

import (
	"strings"

	"virt-backup/src/drives"
)

// scratchName derives the deterministic scratch disk name for one
// drive. The backup ID prefix is what lets cleanup find every disk a
// session allocated.
func scratchName(backupID, driveName string) string {
	return backupID + "." + driveName
}

// prepareScratchDisks allocates a scratch disk for every resolved drive
// that did not arrive with a pre-provisioned one, sized to the drive's
// full virtual capacity so an incremental backup can grow into it.
// Rollback on failure belongs to the caller's deferred cleanup.
func (m *Manager) prepareScratchDisks(cfg *BackupConfig, resolved []BackupDrive) error {
	for i := range resolved {
		if resolved[i].ScratchPath != "" {
			continue
		}
		capacity, err := m.dom.BlockCapacity(resolved[i].Path)
		if err != nil {
			return newError(KindOperation, err,
				"failed to measure drive %s for backup %s", resolved[i].Name, cfg.BackupID)
		}
		path, err := m.scratch.Create(m.owner, scratchName(cfg.BackupID, resolved[i].Name), capacity)
		if err != nil {
			return newError(KindOperation, err,
				"failed to create scratch disk for drive %s of backup %s", resolved[i].Name, cfg.BackupID)
		}
		resolved[i].ScratchPath = path
		resolved[i].ScratchType = drives.TypeFile
	}
	return nil
}

// removeScratchDisks deletes every scratch disk allocated under
// backupID. It is the cleanup entry point for both failed starts and
// StopBackup, safe to call when nothing exists. Individual removal
// failures are logged and never escalate; a cleanup path must not fail
// its caller over an already-gone resource.
func (m *Manager) removeScratchDisks(backupID string) {
	names, err := m.scratch.List(m.owner)
	if err != nil {
		m.log.Warn().Err(err).
			Str("backup_id", backupID).
			Msg("could not list scratch disks for cleanup")
		return
	}
	for _, name := range names {
		if !strings.HasPrefix(name, backupID+".") {
			continue
		}
		if err := m.scratch.Remove(m.owner, name); err != nil {
			m.log.Error().Err(err).
				Str("backup_id", backupID).
				Str("scratch", name).
				Msg("failed to remove scratch disk")
			continue
		}
		m.log.Debug().
			Str("backup_id", backupID).
			Str("scratch", name).
			Msg("scratch disk removed")
	}
}
