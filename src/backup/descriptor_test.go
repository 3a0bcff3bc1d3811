package backup_test

import (
	"strings"
	"testing"

	"virt-backup/src/backup"
	"virt-backup/src/drives"
	"virt-backup/src/nbd"
)

func TestBuildBackupXML_RoundTrip(t *testing.T) {
	backupDrives := []backup.BackupDrive{
		{
			Name:        "vda",
			Path:        testPath1,
			Type:        drives.TypeFile,
			BackupMode:  backup.ModeFull,
			ImageID:     testImg1,
			ScratchPath: "/var/lib/virt-backup/scratch/vm1/" + testBackupID + ".vda",
			ScratchType: drives.TypeFile,
		},
		{
			Name:        "vdb",
			Path:        testPath2,
			Type:        drives.TypeBlock,
			BackupMode:  backup.ModeIncremental,
			ImageID:     testImg2,
			ScratchPath: "/dev/vg0/scratch-vdb",
			ScratchType: drives.TypeBlock,
		},
	}
	addr := nbd.SocketPath("/run/virt-backup", testBackupID)

	raw, err := backup.BuildBackupXML(addr, backupDrives, testCP1)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := backup.ParseBackupXML(raw)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Transport != "unix" || parsed.Socket != "/run/virt-backup/"+testBackupID {
		t.Fatalf("unexpected server: %+v", parsed)
	}
	if parsed.Incremental != testCP1 {
		t.Fatalf("got incremental %q, want %q", parsed.Incremental, testCP1)
	}
	if len(parsed.Disks) != 2 {
		t.Fatalf("got %d disks, want 2", len(parsed.Disks))
	}

	vda := parsed.Disks[0]
	if vda.Name != "vda" || vda.Type != drives.TypeFile || vda.BackupMode != backup.ModeFull {
		t.Fatalf("unexpected first disk: %+v", vda)
	}
	if vda.Incremental != "" {
		t.Fatalf("a full disk must not carry an incremental attribute: %+v", vda)
	}

	vdb := parsed.Disks[1]
	if vdb.Name != "vdb" || vdb.Type != drives.TypeBlock || vdb.BackupMode != backup.ModeIncremental {
		t.Fatalf("unexpected second disk: %+v", vdb)
	}
	if vdb.Incremental != testCP1 {
		t.Fatalf("got disk incremental %q, want %q", vdb.Incremental, testCP1)
	}

	// Scratch references follow the storage type.
	if !strings.Contains(raw, `file="/var/lib/virt-backup/scratch/vm1/`+testBackupID+`.vda"`) {
		t.Fatalf("missing file scratch reference:\n%s", raw)
	}
	if !strings.Contains(raw, `dev="/dev/vg0/scratch-vdb"`) {
		t.Fatalf("missing block scratch reference:\n%s", raw)
	}
	if strings.Count(raw, `<seclabel model="dac" relabel="no"`) != 2 {
		t.Fatalf("every scratch disk needs a no-relabel seclabel:\n%s", raw)
	}
}

func TestBuildCheckpointXML_DescribesRequestedDisks(t *testing.T) {
	cfg := &backup.BackupConfig{
		BackupID:           testBackupID,
		ToCheckpointID:     testCP2,
		ParentCheckpointID: testCP1,
		CreationTime:       1724500000,
		Disks: []backup.DiskConfig{
			{VolumeID: testVol1, ImageID: testImg1, DomainID: testSD, Checkpoint: true},
			{VolumeID: testVol2, ImageID: testImg2, DomainID: testSD, Checkpoint: false},
		},
	}
	byImage := map[string]backup.BackupDrive{
		testImg1: {Name: "vda", ImageID: testImg1},
		testImg2: {Name: "vdb", ImageID: testImg2},
	}

	raw, err := backup.BuildCheckpointXML(cfg, byImage)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<name>" + testCP2 + "</name>",
		"<description>checkpoint for backup '" + testBackupID + "'</description>",
		"<name>" + testCP1 + "</name>",
		"<creationTime>1724500000</creationTime>",
		`<disk name="vda" checkpoint="bitmap" bitmap="` + testCP2 + `"`,
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("missing %q in:\n%s", want, raw)
		}
	}
	// The second disk opted out of the checkpoint.
	if strings.Contains(raw, "vdb") {
		t.Fatalf("disk without checkpoint flag leaked into the descriptor:\n%s", raw)
	}
}

func TestBuildCheckpointXML_NoCheckpointRequested(t *testing.T) {
	cfg := fullRequest()

	raw, err := backup.BuildCheckpointXML(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if raw != "" {
		t.Fatalf("expected empty descriptor, got:\n%s", raw)
	}
}

func TestBuildCheckpointXML_OmitsDisksWhenNoneResolve(t *testing.T) {
	cfg := fullRequest()
	cfg.ToCheckpointID = testCP1

	// None of the requested disks are attached anymore.
	raw, err := backup.BuildCheckpointXML(cfg, map[string]backup.BackupDrive{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(raw, "<disks>") {
		t.Fatalf("descriptor must omit the disks section entirely:\n%s", raw)
	}
	if !strings.Contains(raw, "<name>"+testCP1+"</name>") {
		t.Fatalf("missing checkpoint name:\n%s", raw)
	}
}
