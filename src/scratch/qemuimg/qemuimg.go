// Package qemuimg provisions file-backed qcow2 scratch disks with the
// qemu-img tool.
package qemuimg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Provisioner keeps one subdirectory per owner under Root, one qcow2
// file per scratch disk.
type Provisioner struct {
	root string
	log  zerolog.Logger
}

func New(root string, log zerolog.Logger) (*Provisioner, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("scratch root must be an absolute path: %s", root)
	}
	return &Provisioner{root: root, log: log}, nil
}

func (p *Provisioner) dir(owner string) string { return filepath.Join(p.root, owner) }

func (p *Provisioner) path(owner, name string) string {
	return filepath.Join(p.root, owner, name)
}

func (p *Provisioner) List(owner string) ([]string, error) {
	entries, err := os.ReadDir(p.dir(owner))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list scratch disks: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (p *Provisioner) Create(owner, name string, size uint64) (string, error) {
	if err := os.MkdirAll(p.dir(owner), 0o750); err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	path := p.path(owner, name)
	out, err := exec.Command(
		"qemu-img", "create", "-f", "qcow2", path, strconv.FormatUint(size, 10),
	).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("create scratch image %s: %v: %s", path, err, out)
	}
	if err := p.verify(path, size); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	p.log.Debug().
		Str("path", path).
		Str("size", humanize.IBytes(size)).
		Msg("scratch disk created")
	return path, nil
}

// verify confirms qemu-img produced what we asked for before the path
// is handed to the hypervisor.
func (p *Provisioner) verify(path string, size uint64) error {
	out, err := exec.Command("qemu-img", "info", "--output=json", path).Output()
	if err != nil {
		return fmt.Errorf("inspect scratch image %s: %w", path, err)
	}
	info := gjson.ParseBytes(out)
	if format := info.Get("format").String(); format != "qcow2" {
		return fmt.Errorf("scratch image %s has format %q, want qcow2", path, format)
	}
	if got := info.Get("virtual-size").Uint(); got != size {
		return fmt.Errorf("scratch image %s has virtual size %d, want %d", path, got, size)
	}
	return nil
}

func (p *Provisioner) Remove(owner, name string) error {
	err := os.Remove(p.path(owner, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove scratch disk: %w", err)
	}
	// Prune the owner directory once it is empty.
	_ = os.Remove(p.dir(owner))
	return nil
}
