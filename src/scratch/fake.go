package scratch

import (
	"path/filepath"
	"sort"
)

// FakeProvisioner is an in-memory Provisioner for unit tests. Fields
// are exported so tests can seed state and inject failures directly.
type FakeProvisioner struct {
	Root  string
	Disks map[string]map[string]uint64 // owner -> name -> size

	// Error injection, keyed by disk name.
	CreateErr map[string]error
	RemoveErr map[string]error
	ListErr   error

	// Call records.
	Created []string
	Removed []string
}

func NewFakeProvisioner() *FakeProvisioner {
	return &FakeProvisioner{
		Root:      "/fake/scratch",
		Disks:     map[string]map[string]uint64{},
		CreateErr: map[string]error{},
		RemoveErr: map[string]error{},
	}
}

func (f *FakeProvisioner) List(owner string) ([]string, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	names := make([]string, 0, len(f.Disks[owner]))
	for name := range f.Disks[owner] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeProvisioner) Create(owner, name string, size uint64) (string, error) {
	f.Created = append(f.Created, name)
	if err := f.CreateErr[name]; err != nil {
		return "", err
	}
	if f.Disks[owner] == nil {
		f.Disks[owner] = map[string]uint64{}
	}
	f.Disks[owner][name] = size
	return filepath.Join(f.Root, owner, name), nil
}

func (f *FakeProvisioner) Remove(owner, name string) error {
	f.Removed = append(f.Removed, name)
	if err := f.RemoveErr[name]; err != nil {
		return err
	}
	delete(f.Disks[owner], name)
	return nil
}

// Size reports a seeded or created disk's size, zero when absent.
func (f *FakeProvisioner) Size(owner, name string) uint64 {
	return f.Disks[owner][name]
}
