//go:build linux || darwin

package serial

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
)

func TestPickDeviceExplicit(t *testing.T) {
	got, err := PickDevice("/dev/ttyUSB3")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/dev/ttyUSB3" {
		t.Errorf("explicit device changed to %q", got)
	}
}

func TestResolveDeviceMissingLink(t *testing.T) {
	_, err := ResolveDevice("/dev/serial/by-id/no-such-printer")
	if !errors.Is(err, errors.ErrSerial) {
		t.Errorf("expected ErrSerial, got %v", err)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = filepath.Join(t.TempDir(), "ttyNONE")
	if _, err := Open(cfg); err == nil {
		t.Fatal("expected error opening a missing device")
	}
	if _, err := os.Stat(cfg.Device); !os.IsNotExist(err) {
		t.Errorf("Open must not create %s", cfg.Device)
	}
}

func TestListPortsDeduplicates(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for _, p := range ports {
		if seen[p] {
			t.Errorf("port %s listed twice", p)
		}
		seen[p] = true
	}
}
