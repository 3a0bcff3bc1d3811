package virtapi

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

// Flag and error values from libvirt-domain.h, libvirt-domain-checkpoint.h
// and virterror.h. Declared untyped so they fit whatever integer type the
// RPC bindings expect.
const (
	backupBeginReuseExternal   = 1 // VIR_DOMAIN_BACKUP_BEGIN_REUSE_EXTERNAL
	checkpointCreateRedefine   = 1 // VIR_DOMAIN_CHECKPOINT_CREATE_REDEFINE
	checkpointRedefineValidate = 4 // VIR_DOMAIN_CHECKPOINT_CREATE_REDEFINE_VALIDATE
	checkpointListTopological  = 2 // VIR_DOMAIN_CHECKPOINT_LIST_TOPOLOGICAL

	errNoDomain               = 42  // VIR_ERR_NO_DOMAIN
	errOperationInvalid       = 55  // VIR_ERR_OPERATION_INVALID
	errAgentUnresponsive      = 86  // VIR_ERR_AGENT_UNRESPONSIVE
	errNoDomainCheckpoint     = 103 // VIR_ERR_NO_DOMAIN_CHECKPOINT
	errNoDomainBackup         = 104 // VIR_ERR_NO_DOMAIN_BACKUP
	errCheckpointInconsistent = 109 // VIR_ERR_CHECKPOINT_INCONSISTENT
)

// Libvirt version thresholds, encoded major*1000000 + minor*1000 + micro.
const (
	versionIncrementalBackup = 6000000 // 6.0.0, virDomainBackupBegin
	versionRedefineValidate  = 6006000 // 6.6.0, REDEFINE_VALIDATE flag
)

// Connection owns the RPC channel to the libvirt daemon.
type Connection struct {
	l       *libvirt.Libvirt
	version uint64
}

// Connect dials the libvirt daemon over its UNIX socket and opens the
// RPC connection. uri selects the driver ("qemu:///system" when empty);
// socket overrides the default daemon socket path.
func Connect(uri, socket string) (*Connection, error) {
	var l *libvirt.Libvirt
	if socket != "" {
		l = libvirt.NewWithDialer(dialers.NewLocal(dialers.WithSocket(socket)))
	} else {
		l = libvirt.NewWithDialer(dialers.NewLocal())
	}

	target := libvirt.QEMUSystem
	if uri != "" {
		target = libvirt.ConnectURI(uri)
	}
	if err := l.ConnectToURI(target); err != nil {
		return nil, fmt.Errorf("connect to libvirt: %w", err)
	}

	version, err := l.ConnectGetLibVersion()
	if err != nil {
		_ = l.Disconnect()
		return nil, fmt.Errorf("query libvirt version: %w", err)
	}
	return &Connection{l: l, version: version}, nil
}

// Close tears down the RPC connection.
func (c *Connection) Close() error {
	return c.l.Disconnect()
}

// SupportsIncrementalBackup reports whether the connected libvirt is new
// enough for the incremental backup API.
func (c *Connection) SupportsIncrementalBackup() bool {
	return c.version >= versionIncrementalBackup
}

// Lookup resolves a defined domain by name.
func (c *Connection) Lookup(name string) (Domain, error) {
	dom, err := c.l.DomainLookupByName(name)
	if err != nil {
		return nil, mapError(err, "domain", name)
	}
	return &realDomain{conn: c, dom: dom, name: name}, nil
}

// realDomain implements Domain against a live libvirt connection.
type realDomain struct {
	conn *Connection
	dom  libvirt.Domain
	name string
}

func (d *realDomain) Name() string { return d.name }

func (d *realDomain) XMLDesc() (string, error) {
	x, err := d.conn.l.DomainGetXMLDesc(d.dom, 0)
	if err != nil {
		return "", mapError(err, "domain", d.name)
	}
	return x, nil
}

func (d *realDomain) BackupBegin(backupXML, checkpointXML string) error {
	var cpXML libvirt.OptString
	if checkpointXML != "" {
		cpXML = []string{checkpointXML}
	}
	err := d.conn.l.DomainBackupBegin(d.dom, backupXML, cpXML, backupBeginReuseExternal)
	if err != nil {
		return mapError(err, "backup", "")
	}
	return nil
}

func (d *realDomain) BackupXMLDesc() (string, error) {
	x, err := d.conn.l.DomainBackupGetXMLDesc(d.dom, 0)
	if err != nil {
		return "", mapError(err, "backup", "")
	}
	return x, nil
}

func (d *realDomain) AbortBackup() error {
	if err := d.conn.l.DomainAbortJob(d.dom); err != nil {
		return mapError(err, "backup", "")
	}
	return nil
}

func (d *realDomain) ListCheckpoints() ([]string, error) {
	chks, _, err := d.conn.l.DomainListAllCheckpoints(d.dom, 1, checkpointListTopological)
	if err != nil {
		return nil, mapError(err, "checkpoint", "")
	}
	names := make([]string, 0, len(chks))
	for _, chk := range chks {
		names = append(names, chk.Name)
	}
	return names, nil
}

func (d *realDomain) CheckpointXMLDesc(name string) (string, error) {
	chk, err := d.conn.l.DomainCheckpointLookupByName(d.dom, name, 0)
	if err != nil {
		return "", mapError(err, "checkpoint", name)
	}
	x, err := d.conn.l.DomainCheckpointGetXMLDesc(chk, 0)
	if err != nil {
		return "", mapError(err, "checkpoint", name)
	}
	return x, nil
}

func (d *realDomain) RedefineCheckpoint(xml string) error {
	flags := uint32(checkpointCreateRedefine)
	if d.conn.version >= versionRedefineValidate {
		flags |= checkpointRedefineValidate
	}
	_, err := d.conn.l.DomainCheckpointCreateXML(d.dom, xml, flags)
	if err != nil {
		return mapError(err, "checkpoint", "")
	}
	return nil
}

func (d *realDomain) DeleteCheckpoint(name string) error {
	chk, err := d.conn.l.DomainCheckpointLookupByName(d.dom, name, 0)
	if err != nil {
		return mapError(err, "checkpoint", name)
	}
	if err := d.conn.l.DomainCheckpointDelete(chk, 0); err != nil {
		return mapError(err, "checkpoint", name)
	}
	return nil
}

func (d *realDomain) BlockCapacity(path string) (uint64, error) {
	// Block info is (allocation, capacity, physical); capacity is the
	// disk's full virtual size.
	_, capacity, _, err := d.conn.l.DomainGetBlockInfo(d.dom, path, 0)
	if err != nil {
		return 0, mapError(err, "block device", path)
	}
	return capacity, nil
}

func (d *realDomain) AgentCommand(cmd string, timeout time.Duration) (string, error) {
	secs := int32(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	reply, err := d.conn.l.QEMUDomainAgentCommand(d.dom, cmd, secs, 0)
	if err != nil {
		return "", mapError(err, "agent", d.name)
	}
	if len(reply) == 0 {
		return "", nil
	}
	return reply[0], nil
}

// mapError converts libvirt RPC failures into the package's typed
// errors. resource and name label NotFoundError results.
func mapError(err error, resource, name string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return &NotConnectedError{}
	}
	var lverr libvirt.Error
	if !errors.As(err, &lverr) {
		return err
	}
	switch lverr.Code {
	case errNoDomain:
		return &NotFoundError{Resource: "domain", Name: name}
	case errNoDomainBackup:
		return &NotFoundError{Resource: "backup", Name: name}
	case errNoDomainCheckpoint:
		return &NotFoundError{Resource: "checkpoint", Name: name}
	case errOperationInvalid:
		return &OperationInvalidError{Detail: lverr.Message}
	case errAgentUnresponsive:
		return &AgentUnresponsiveError{Detail: lverr.Message}
	case errCheckpointInconsistent:
		return &InconsistentCheckpointError{Name: name, Detail: lverr.Message}
	}
	return err
}
