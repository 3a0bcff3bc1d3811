// Package drives inventories the disks attached to a running domain so
// backup requests can be matched against what the VM actually has.
package drives

// Disk backing types as libvirt names them.
const (
	TypeFile  = "file"
	TypeBlock = "block"
)

// Info describes one attached disk. Domain, Image and Volume are the
// storage identity recovered from the disk's source; Name is the
// device target the hypervisor addresses it by (vda, sdb, ...).
type Info struct {
	Name   string
	Path   string
	Type   string // file or block
	Domain string
	Image  string
	Volume string
}

// Catalog lists a VM's attached disks. Implementations read live
// hypervisor state; nothing is cached between calls.
type Catalog interface {
	Drives() ([]Info, error)
}
