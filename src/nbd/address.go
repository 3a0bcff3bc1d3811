// Package nbd models the NBD export endpoints that pull-mode backups
// expose. The hypervisor runs the NBD server; we only compute where it
// listens and how clients should address each exported disk.
package nbd

import (
	"fmt"
	"path/filepath"
)

// UnixAddress is the filesystem path of an NBD server's UNIX socket.
type UnixAddress string

// Transport returns the libvirt transport name for this address family.
func (a UnixAddress) Transport() string { return "unix" }

// Path returns the socket path as a plain string.
func (a UnixAddress) Path() string { return string(a) }

// URL returns the qemu-style NBD URL for the named export, e.g.
// "nbd:unix:/run/virt-backup/b1:exportname=vda".
func (a UnixAddress) URL(export string) string {
	return fmt.Sprintf("nbd:unix:%s:exportname=%s", string(a), export)
}

// SocketPath returns the per-backup socket address under runDir. One
// backup job gets exactly one socket, named after its backup ID.
func SocketPath(runDir, backupID string) UnixAddress {
	return UnixAddress(filepath.Join(runDir, backupID))
}
