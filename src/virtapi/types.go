package virtapi

import "time"

// Domain is a narrow interface over libvirt's per-domain API.
// Keep it small and focused on what the backup control plane actually
// needs so it stays mockable.
type Domain interface {
	// Name returns the domain name this handle was looked up by.
	Name() string

	// XMLDesc returns the live domain XML.
	XMLDesc() (string, error)

	// BackupBegin starts a pull-mode backup job described by backupXML.
	// checkpointXML is optional; when non-empty the checkpoint is
	// created atomically with the job. Scratch disks must already exist;
	// the job is started with the reuse-external flag.
	BackupBegin(backupXML, checkpointXML string) error

	// BackupXMLDesc returns the description of the running backup job,
	// or a NotFoundError when no job is active.
	BackupXMLDesc() (string, error)

	// AbortBackup cancels the running backup job.
	AbortBackup() error

	// ListCheckpoints returns all checkpoint names in topological order,
	// parents before children.
	ListCheckpoints() ([]string, error)

	// CheckpointXMLDesc returns the description of one checkpoint.
	CheckpointXMLDesc(name string) (string, error)

	// RedefineCheckpoint recreates checkpoint metadata from xml,
	// validating it against the on-disk bitmaps where the hypervisor
	// supports that.
	RedefineCheckpoint(xml string) error

	// DeleteCheckpoint removes the named checkpoint and its bitmap.
	DeleteCheckpoint(name string) error

	// BlockCapacity returns the virtual size in bytes of the disk
	// attached at path.
	BlockCapacity(path string) (uint64, error)

	// AgentCommand runs a qemu-guest-agent command and returns the raw
	// JSON reply. timeout bounds how long the guest may take to answer.
	AgentCommand(cmd string, timeout time.Duration) (string, error)
}

// NotFoundError reports a missing hypervisor-side resource
// (domain, backup job, checkpoint, block device).
type NotFoundError struct{ Resource, Name string }

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return e.Resource + " not found"
	}
	return e.Resource + " not found: " + e.Name
}

// InconsistentCheckpointError reports a checkpoint whose dirty bitmap no
// longer matches its metadata, usually after the disk chain changed
// behind libvirt's back.
type InconsistentCheckpointError struct {
	Name   string
	Detail string
}

func (e *InconsistentCheckpointError) Error() string {
	return "inconsistent checkpoint " + e.Name + ": " + e.Detail
}

// OperationInvalidError reports a call the domain's current state does
// not allow, e.g. aborting a job that already finished.
type OperationInvalidError struct{ Detail string }

func (e *OperationInvalidError) Error() string {
	return "operation invalid: " + e.Detail
}

// NotConnectedError reports a lost connection to the libvirt daemon.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string { return "not connected to libvirt" }

// AgentUnresponsiveError reports a guest agent that did not answer
// within its timeout.
type AgentUnresponsiveError struct{ Detail string }

func (e *AgentUnresponsiveError) Error() string {
	return "guest agent unresponsive: " + e.Detail
}
