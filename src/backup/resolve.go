package backup

import "virt-backup/src/drives"

// resolveDrives matches every configured disk against the VM's
// attached drives by its (domain, image, volume) identity. The result
// preserves request order. Resolution happens freshly per session;
// attachment state may have changed since the last one.
func resolveDrives(catalog drives.Catalog, cfg *BackupConfig) ([]BackupDrive, error) {
	attached, err := catalog.Drives()
	if err != nil {
		return nil, newError(KindLookup, err, "failed to list attached drives")
	}

	resolved := make([]BackupDrive, 0, len(cfg.Disks))
	for _, disk := range cfg.Disks {
		info, ok := findDrive(attached, disk)
		if !ok {
			return nil, newError(KindLookup, nil,
				"no attached drive for disk %s (domain %s, volume %s)",
				disk.ImageID, disk.DomainID, disk.VolumeID)
		}
		drive := BackupDrive{
			Name:       info.Name,
			Path:       info.Path,
			Type:       info.Type,
			BackupMode: disk.BackupMode,
			ImageID:    disk.ImageID,
			Checkpoint: disk.Checkpoint,
		}
		if disk.Scratch != nil {
			drive.ScratchPath = disk.Scratch.Path
			drive.ScratchType = disk.Scratch.Type
		}
		resolved = append(resolved, drive)
	}
	return resolved, nil
}

func findDrive(attached []drives.Info, disk DiskConfig) (drives.Info, bool) {
	for _, info := range attached {
		if info.Domain == disk.DomainID && info.Image == disk.ImageID && info.Volume == disk.VolumeID {
			return info, true
		}
	}
	return drives.Info{}, false
}

// driveMap indexes resolved drives by image ID, the key the checkpoint
// descriptor and result payloads use.
func driveMap(resolved []BackupDrive) map[string]BackupDrive {
	m := make(map[string]BackupDrive, len(resolved))
	for _, drive := range resolved {
		m[drive.ImageID] = drive
	}
	return m
}
