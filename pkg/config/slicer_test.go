package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/geometry"
)

func TestSlicerConfigDefaults(t *testing.T) {
	cfg, err := LoadString("")
	if err != nil {
		t.Fatal(err)
	}
	sc, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	def := DefaultSlicerConfig()
	if *sc != *def {
		t.Errorf("empty config should yield defaults:\n got %+v\nwant %+v", sc, def)
	}
	if sc.UnderlapMax != 2.0 {
		t.Errorf("expected underlap_max 2.0, got %v", sc.UnderlapMax)
	}
	if sc.Ops().Scale != geometry.DefaultScale {
		t.Errorf("expected default scale, got %v", sc.Ops().Scale)
	}
}

func TestSlicerConfigOverrides(t *testing.T) {
	data := `
[slicer]
max_height: 0.3
area_epsilon: 0.01
underlap_max: 1.5
precision: 1000
workers: 8
randomize_underlaps: no

[toolpath]
default_width: 0.6
default_height: 0.3

[server]
progress_addr:
metrics_addr: :9100

[output]
serial_device: /dev/ttyUSB0
baud: 115200
line_numbers: on

[log]
level: DEBUG
`
	cfg, err := LoadString(data)
	if err != nil {
		t.Fatal(err)
	}
	sc, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	want := SlicerConfig{
		MaxHeight:     0.3,
		AreaEpsilon:   0.01,
		UnderlapMax:   1.5,
		Precision:     1000,
		Workers:       8,
		Randomize:     false,
		DefaultWidth:  0.6,
		DefaultHeight: 0.3,
		ProgressAddr:  "",
		MetricsAddr:   ":9100",
		SerialDevice:  "/dev/ttyUSB0",
		Baud:          115200,
		LineNumbers:   true,
		LogLevel:      "debug",
	}
	if *sc != want {
		t.Errorf("got %+v\nwant %+v", *sc, want)
	}
	if err := cfg.CheckUnusedOptions(); err != nil {
		t.Errorf("all options should be consumed: %v", err)
	}
}

func TestSlicerConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"negative max height", "[slicer]\nmax_height: -1\n"},
		{"zero precision", "[slicer]\nprecision: 0\n"},
		{"negative workers", "[slicer]\nworkers: -2\n"},
		{"zero width", "[toolpath]\ndefault_width: 0\n"},
		{"bad float", "[slicer]\nunderlap_max: lots\n"},
		{"zero baud", "[output]\nbaud: 0\n"},
		{"bad bool", "[output]\nline_numbers: maybe\n"},
		{"bad level", "[log]\nlevel: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadString(tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := FromConfig(cfg); err == nil {
				t.Error("expected validation error")
			} else if _, ok := errors.As(err); !ok {
				t.Errorf("expected HostError in chain, got %T", err)
			}
		})
	}
}

func TestParseSlicerConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "fiberslice.cfg")
	if err := os.WriteFile(p, []byte("[slicer]\nmax_height: 1.2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sc, err := ParseSlicerConfig(p)
	if err != nil {
		t.Fatalf("ParseSlicerConfig failed: %v", err)
	}
	if sc.MaxHeight != 1.2 {
		t.Errorf("expected 1.2, got %v", sc.MaxHeight)
	}

	if _, err := ParseSlicerConfig(filepath.Join(t.TempDir(), "missing.cfg")); err == nil {
		t.Error("expected error for missing file")
	}
}
