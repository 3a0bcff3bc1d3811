package backup_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"virt-backup/src/backup"
	"virt-backup/src/virtapi"
)

func TestListCheckpoints_BaseToLeaf(t *testing.T) {
	h := newHarness()
	h.dom.Chain = []virtapi.FakeCheckpoint{{Name: testCP1}, {Name: testCP2}}

	names, err := h.mgr.ListCheckpoints()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != testCP1 || names[1] != testCP2 {
		t.Fatalf("unexpected chain: %v", names)
	}
}

func TestDeleteCheckpoints_FullSuccess(t *testing.T) {
	h := newHarness()
	h.dom.Chain = []virtapi.FakeCheckpoint{{Name: testCP1}, {Name: testCP2}}

	res, err := h.mgr.DeleteCheckpoints([]string{testCP1, testCP2})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.CheckpointIDs) != 2 || res.Failure != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	names, _ := h.dom.ListCheckpoints()
	if len(names) != 0 {
		t.Fatalf("chain not empty after delete: %v", names)
	}

	// A clean result serializes without an error member.
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Fatalf("clean result must omit the error member: %s", data)
	}
}

func TestDeleteCheckpoints_PartialFailure(t *testing.T) {
	h := newHarness()
	h.dom.Chain = []virtapi.FakeCheckpoint{{Name: testCP1}, {Name: testCP2}, {Name: testCP3}}
	h.dom.DeleteErr[testCP2] = errors.New("checkpoint is in use")

	res, err := h.mgr.DeleteCheckpoints([]string{testCP1, testCP2, testCP3})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.CheckpointIDs) != 1 || res.CheckpointIDs[0] != testCP1 {
		t.Fatalf("unexpected deleted set: %v", res.CheckpointIDs)
	}
	if res.Failure == nil || res.Failure.Code != backup.KindChain {
		t.Fatalf("unexpected failure: %+v", res.Failure)
	}
	if !strings.Contains(res.Failure.Message, testCP2) {
		t.Fatalf("failure must name the checkpoint: %s", res.Failure.Message)
	}
	// Processing stopped at the failure.
	names, _ := h.dom.ListCheckpoints()
	if len(names) != 2 || names[0] != testCP2 || names[1] != testCP3 {
		t.Fatalf("unexpected chain: %v", names)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"checkpoint_ids":["`+testCP1+`"]`) {
		t.Fatalf("partial progress missing from payload: %s", data)
	}
	if !strings.Contains(string(data), `"error":{`) {
		t.Fatalf("failure missing from payload: %s", data)
	}
}

func TestDeleteCheckpoints_AbsentCountsAsDeleted(t *testing.T) {
	h := newHarness()
	h.dom.Chain = []virtapi.FakeCheckpoint{{Name: testCP2}}

	res, err := h.mgr.DeleteCheckpoints([]string{testCP1, testCP2})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.CheckpointIDs) != 2 || res.Failure != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRedefineCheckpoints_FromRawXML(t *testing.T) {
	h := newHarness()
	x := "<domaincheckpoint><name>" + testCP1 + "</name></domaincheckpoint>"

	res, err := h.mgr.RedefineCheckpoints([]backup.CheckpointConfig{
		{CheckpointID: testCP1, XML: x},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.CheckpointIDs) != 1 || res.Failure != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(h.dom.Redefined) != 1 || h.dom.Redefined[0] != x {
		t.Fatalf("unexpected submitted descriptors: %v", h.dom.Redefined)
	}
	names, _ := h.dom.ListCheckpoints()
	if len(names) != 1 || names[0] != testCP1 {
		t.Fatalf("unexpected chain: %v", names)
	}
}

func TestRedefineCheckpoints_RebuildsDescriptor(t *testing.T) {
	h := newHarness()

	res, err := h.mgr.RedefineCheckpoints([]backup.CheckpointConfig{
		{
			CheckpointID: testCP1,
			Config: &backup.BackupConfig{
				BackupID:       testBackupID,
				ToCheckpointID: testCP1,
				Disks: []backup.DiskConfig{
					{VolumeID: testVol1, ImageID: testImg1, DomainID: testSD, Checkpoint: true},
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Failure != nil {
		t.Fatalf("unexpected failure: %+v", res.Failure)
	}
	x := h.dom.Redefined[0]
	if !strings.Contains(x, "<name>"+testCP1+"</name>") {
		t.Fatalf("missing name:\n%s", x)
	}
	if !strings.Contains(x, `<disk name="vda" checkpoint="bitmap" bitmap="`+testCP1+`"`) {
		t.Fatalf("missing bitmap entry:\n%s", x)
	}
}

func TestRedefineCheckpoints_ToleratesDetachedDrives(t *testing.T) {
	h := newHarness()

	res, err := h.mgr.RedefineCheckpoints([]backup.CheckpointConfig{
		{
			CheckpointID: testCP1,
			Config: &backup.BackupConfig{
				BackupID:       testBackupID,
				ToCheckpointID: testCP1,
				Disks: []backup.DiskConfig{
					{VolumeID: testVol3, ImageID: testImg3, DomainID: testSD, Checkpoint: true},
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Failure != nil {
		t.Fatalf("detached drives must not fail a redefinition: %+v", res.Failure)
	}
	if strings.Contains(h.dom.Redefined[0], "<disks>") {
		t.Fatalf("descriptor must omit the disks section:\n%s", h.dom.Redefined[0])
	}
}

func TestRedefineCheckpoints_PartialFailure(t *testing.T) {
	h := newHarness()
	h.dom.RedefineErr[testCP2] = errors.New("metadata rejected")

	res, err := h.mgr.RedefineCheckpoints([]backup.CheckpointConfig{
		{CheckpointID: testCP1, XML: "<domaincheckpoint><name>" + testCP1 + "</name></domaincheckpoint>"},
		{CheckpointID: testCP2, XML: "<domaincheckpoint><name>" + testCP2 + "</name></domaincheckpoint>"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.CheckpointIDs) != 1 || res.CheckpointIDs[0] != testCP1 {
		t.Fatalf("unexpected redefined set: %v", res.CheckpointIDs)
	}
	if res.Failure == nil || res.Failure.Code != backup.KindChain {
		t.Fatalf("unexpected failure: %+v", res.Failure)
	}
}

func TestRedefineCheckpoints_InconsistentBitmap(t *testing.T) {
	h := newHarness()
	h.dom.RedefineErr[testCP1] = &virtapi.InconsistentCheckpointError{Name: testCP1, Detail: "bitmap mismatch"}

	res, err := h.mgr.RedefineCheckpoints([]backup.CheckpointConfig{
		{CheckpointID: testCP1, XML: "<domaincheckpoint><name>" + testCP1 + "</name></domaincheckpoint>"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Failure == nil || res.Failure.Code != backup.KindInconsistentCheckpoint {
		t.Fatalf("unexpected failure: %+v", res.Failure)
	}
}

func TestDumpCheckpoint(t *testing.T) {
	h := newHarness()
	cpXML := "<domaincheckpoint><name>" + testCP1 + "</name></domaincheckpoint>"
	h.dom.Chain = []virtapi.FakeCheckpoint{{Name: testCP1, XML: cpXML}}

	got, err := h.mgr.DumpCheckpoint(testCP1)
	if err != nil {
		t.Fatal(err)
	}
	if got != cpXML {
		t.Fatalf("got %q, want %q", got, cpXML)
	}

	_, err = h.mgr.DumpCheckpoint(testCP2)
	if !backup.IsKind(err, backup.KindNoSuchCheckpoint) {
		t.Fatalf("expected no-such-checkpoint error, got %v", err)
	}
}
