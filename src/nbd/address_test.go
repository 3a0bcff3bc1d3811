package nbd_test

import (
	"testing"

	"virt-backup/src/nbd"
)

func TestSocketPath_OneSocketPerBackup(t *testing.T) {
	addr := nbd.SocketPath("/run/virt-backup", "b1")
	if addr.Path() != "/run/virt-backup/b1" {
		t.Fatalf("unexpected socket path: %s", addr.Path())
	}
	if addr.Transport() != "unix" {
		t.Fatalf("unexpected transport: %s", addr.Transport())
	}
}

func TestURL_QemuForm(t *testing.T) {
	addr := nbd.SocketPath("/run/vdsm/backup", "b1")
	got := addr.URL("vda")
	want := "nbd:unix:/run/vdsm/backup/b1:exportname=vda"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
