package backup

import (
	"encoding/xml"
	"fmt"

	"virt-backup/src/drives"
	"virt-backup/src/nbd"
)

// BackupDrive is the resolved runtime view of one disk during a
// session: the attached drive joined with the scratch disk backing it.
// Built once per session, discarded at session end.
type BackupDrive struct {
	Name        string
	Path        string
	Type        string // file or block
	BackupMode  string
	ImageID     string
	Checkpoint  bool
	ScratchPath string
	ScratchType string
}

// The descriptor schema is a compatibility contract with libvirt;
// element and attribute names below must not change.

type backupDoc struct {
	XMLName     xml.Name    `xml:"domainbackup"`
	Mode        string      `xml:"mode,attr"`
	Incremental string      `xml:"incremental,omitempty"`
	Server      serverDoc   `xml:"server"`
	Disks       backupDisks `xml:"disks"`
}

type serverDoc struct {
	Transport string `xml:"transport,attr"`
	Socket    string `xml:"socket,attr"`
}

type backupDisks struct {
	Disks []backupDisk `xml:"disk"`
}

type backupDisk struct {
	Name        string     `xml:"name,attr"`
	Type        string     `xml:"type,attr"`
	Backup      string     `xml:"backup,attr,omitempty"`
	BackupMode  string     `xml:"backupmode,attr,omitempty"`
	Incremental string     `xml:"incremental,attr,omitempty"`
	Scratch     scratchDoc `xml:"scratch"`
}

type scratchDoc struct {
	File     string        `xml:"file,attr,omitempty"`
	Dev      string        `xml:"dev,attr,omitempty"`
	Seclabel []seclabelDoc `xml:"seclabel"`
}

type seclabelDoc struct {
	Model   string `xml:"model,attr"`
	Relabel string `xml:"relabel,attr"`
}

type checkpointDoc struct {
	XMLName      xml.Name          `xml:"domaincheckpoint"`
	Name         string            `xml:"name"`
	Description  string            `xml:"description"`
	Parent       *checkpointParent `xml:"parent,omitempty"`
	CreationTime int64             `xml:"creationTime,omitempty"`
	Disks        *checkpointDisks  `xml:"disks,omitempty"`
}

type checkpointParent struct {
	Name string `xml:"name"`
}

type checkpointDisks struct {
	Disks []checkpointDisk `xml:"disk"`
}

type checkpointDisk struct {
	Name       string `xml:"name,attr"`
	Checkpoint string `xml:"checkpoint,attr"`
	Bitmap     string `xml:"bitmap,attr"`
}

// BuildBackupXML renders the pull-mode backup descriptor. Scratch disks
// are referenced by device node or file path according to their storage
// type, each carrying a dac/no-relabel seclabel so the hypervisor does
// not chown what the session owns.
func BuildBackupXML(addr nbd.UnixAddress, backupDrives []BackupDrive, fromCheckpointID string) (string, error) {
	doc := backupDoc{
		Mode:        "pull",
		Incremental: fromCheckpointID,
		Server: serverDoc{
			Transport: addr.Transport(),
			Socket:    addr.Path(),
		},
	}
	for _, drive := range backupDrives {
		disk := backupDisk{
			Name:       drive.Name,
			Type:       drive.Type,
			BackupMode: drive.BackupMode,
		}
		if drive.BackupMode == ModeIncremental {
			disk.Incremental = fromCheckpointID
		}
		if drive.ScratchType == drives.TypeBlock {
			disk.Scratch.Dev = drive.ScratchPath
		} else {
			disk.Scratch.File = drive.ScratchPath
		}
		disk.Scratch.Seclabel = []seclabelDoc{{Model: "dac", Relabel: "no"}}
		doc.Disks.Disks = append(doc.Disks.Disks, disk)
	}
	return marshalDoc(&doc)
}

// BuildCheckpointXML renders the checkpoint descriptor for a backup
// request, or "" when the request does not name a checkpoint to create.
// Only disks flagged for checkpoint inclusion get bitmap entries, and
// only when their drive still resolves: redefining a checkpoint whose
// disks were detached since must omit the disks section entirely, not
// emit it empty.
func BuildCheckpointXML(cfg *BackupConfig, driveByImage map[string]BackupDrive) (string, error) {
	if cfg.ToCheckpointID == "" {
		return "", nil
	}
	doc := checkpointDoc{
		Name:         cfg.ToCheckpointID,
		Description:  fmt.Sprintf("checkpoint for backup '%s'", cfg.BackupID),
		CreationTime: cfg.CreationTime,
	}
	if cfg.ParentCheckpointID != "" {
		doc.Parent = &checkpointParent{Name: cfg.ParentCheckpointID}
	}
	var entries []checkpointDisk
	for _, disk := range cfg.Disks {
		if !disk.Checkpoint {
			continue
		}
		drive, ok := driveByImage[disk.ImageID]
		if !ok {
			continue
		}
		entries = append(entries, checkpointDisk{
			Name:       drive.Name,
			Checkpoint: "bitmap",
			Bitmap:     cfg.ToCheckpointID,
		})
	}
	if len(entries) > 0 {
		doc.Disks = &checkpointDisks{Disks: entries}
	}
	return marshalDoc(&doc)
}

// ParsedBackup is the subset of a live backup descriptor the tool reads
// back: where the export listens and which disks it serves.
type ParsedBackup struct {
	Transport   string
	Socket      string
	Incremental string
	Disks       []ParsedDisk
}

// ParsedDisk is one disk entry of a live backup descriptor. Backup is
// "no" for disks the job explicitly excludes.
type ParsedDisk struct {
	Name        string
	Type        string
	Backup      string
	BackupMode  string
	Incremental string
}

// ParseBackupXML reads a backup descriptor produced either by
// BuildBackupXML or by the hypervisor's live job description.
func ParseBackupXML(raw string) (*ParsedBackup, error) {
	var doc backupDoc
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse backup descriptor: %w", err)
	}
	parsed := &ParsedBackup{
		Transport:   doc.Server.Transport,
		Socket:      doc.Server.Socket,
		Incremental: doc.Incremental,
	}
	for _, disk := range doc.Disks.Disks {
		parsed.Disks = append(parsed.Disks, ParsedDisk{
			Name:        disk.Name,
			Type:        disk.Type,
			Backup:      disk.Backup,
			BackupMode:  disk.BackupMode,
			Incremental: disk.Incremental,
		})
	}
	return parsed, nil
}

func marshalDoc(doc any) (string, error) {
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render descriptor: %w", err)
	}
	return string(out), nil
}
