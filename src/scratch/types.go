// Package scratch defines the storage boundary for the transient disks
// a pull-mode backup writes copy-on-write data into while clients read
// the exports.
package scratch

// Provisioner manages scratch disks grouped by owner. The owner is the
// VM name and disk names carry the backup ID as a prefix, so everything
// one backup allocated can be found and removed again by listing the
// owner's group.
type Provisioner interface {
	// List returns the names of the owner's scratch disks.
	List(owner string) ([]string, error)
	// Create allocates a scratch disk able to hold size bytes of
	// copy-on-write data and returns its filesystem path.
	Create(owner, name string, size uint64) (string, error)
	// Remove deletes one scratch disk. Removing a disk that does not
	// exist is not an error.
	Remove(owner, name string) error
}
