package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
)

func TestLoadString(t *testing.T) {
	data := `
# slicing settings
[slicer]
max_height: 0.4
area_epsilon = 0.001   # inline comment
workers: 4

[toolpath]
default_width: 0.5
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	if !cfg.HasSection("slicer") {
		t.Error("expected [slicer] section to exist")
	}
	if cfg.HasSection("nonexistent") {
		t.Error("expected [nonexistent] section to not exist")
	}
	if names := cfg.GetSectionNames(); len(names) != 2 || names[0] != "slicer" || names[1] != "toolpath" {
		t.Errorf("unexpected section order: %v", names)
	}

	sec, err := cfg.GetSection("slicer")
	if err != nil {
		t.Fatalf("GetSection(slicer) failed: %v", err)
	}
	if sec.GetName() != "slicer" {
		t.Errorf("expected name 'slicer', got '%s'", sec.GetName())
	}

	h, err := sec.GetFloat("max_height")
	if err != nil || h != 0.4 {
		t.Errorf("GetFloat(max_height) = %v, %v", h, err)
	}
	eps, err := sec.GetFloat("area_epsilon")
	if err != nil || eps != 0.001 {
		t.Errorf("GetFloat(area_epsilon) = %v, %v", eps, err)
	}
	w, err := sec.GetInt("workers")
	if err != nil || w != 4 {
		t.Errorf("GetInt(workers) = %v, %v", w, err)
	}
}

func TestSectionGet(t *testing.T) {
	data := `
[test]
string_val: hello
int_val: 42
float_val: 3.14
bool_true: true
bool_false: no
bool_one: 1
addr: localhost:7125
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	sec, _ := cfg.GetSection("test")

	if val, _ := sec.Get("missing", "default"); val != "default" {
		t.Errorf("expected 'default', got '%s'", val)
	}
	if i, _ := sec.GetInt("int_val"); i != 42 {
		t.Errorf("expected 42, got %d", i)
	}
	if i, _ := sec.GetInt("missing", 99); i != 99 {
		t.Errorf("expected 99, got %d", i)
	}
	if f, _ := sec.GetFloat("float_val"); f != 3.14 {
		t.Errorf("expected 3.14, got %f", f)
	}
	if b, _ := sec.GetBool("bool_true"); !b {
		t.Error("expected true")
	}
	if b, _ := sec.GetBool("bool_false"); b {
		t.Error("expected false")
	}
	if b, _ := sec.GetBool("bool_one"); !b {
		t.Error("expected true for '1'")
	}
	// only the first separator splits key and value
	if addr, _ := sec.Get("addr"); addr != "localhost:7125" {
		t.Errorf("expected 'localhost:7125', got '%s'", addr)
	}
	if _, err := sec.GetInt("string_val"); err == nil {
		t.Error("expected error for non-integer value")
	}
}

func TestAccessTracking(t *testing.T) {
	data := `
[used]
a: 1
b: 2
stray: 3

[unused_section]
key: value
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	sec, _ := cfg.GetSection("used")
	sec.Get("a")
	sec.Get("b")

	unused := sec.GetUnusedOptions()
	if len(unused) != 1 || unused[0] != "stray" {
		t.Errorf("expected [stray], got %v", unused)
	}
	if s := cfg.GetUnusedSections(); len(s) != 1 || s[0] != "unused_section" {
		t.Errorf("expected [unused_section], got %v", s)
	}

	err = cfg.CheckUnusedOptions()
	if err == nil {
		t.Fatal("expected unused options error")
	}
	if !strings.Contains(err.Error(), "stray") || !strings.Contains(err.Error(), "unused_section") {
		t.Errorf("error should name the stray option and section: %v", err)
	}
}

func TestGetChoice(t *testing.T) {
	cfg, _ := LoadString("[log]\nformat: JSON\n")
	sec, _ := cfg.GetSection("log")

	v, err := sec.GetChoice("format", []string{"text", "json"})
	if err != nil {
		t.Fatalf("GetChoice failed: %v", err)
	}
	if v != "json" {
		t.Errorf("expected canonical 'json', got '%s'", v)
	}

	if _, err := sec.GetChoice("format", []string{"text"}); err == nil {
		t.Error("expected invalid choice error")
	}
}

func TestBoundsChecking(t *testing.T) {
	cfg, _ := LoadString("[test]\nneg: -1\nzero: 0\ncount: 5\n")
	sec, _ := cfg.GetSection("test")

	tests := []struct {
		name    string
		option  string
		bounds  FloatBounds
		wantErr bool
	}{
		{"min ok", "zero", FloatBounds{MinVal: Float(0)}, false},
		{"min violated", "neg", FloatBounds{MinVal: Float(0)}, true},
		{"above violated", "zero", FloatBounds{Above: Float(0)}, true},
		{"below ok", "neg", FloatBounds{Below: Float(0)}, false},
		{"max violated", "count", FloatBounds{MaxVal: Float(4)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sec.GetFloatWithBounds(tt.option, tt.bounds)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	minVal, maxVal := 1, 3
	if _, err := sec.GetIntWithBounds("count", &minVal, &maxVal); err == nil {
		t.Error("expected out of range error")
	}
}

func TestMissingOptionError(t *testing.T) {
	cfg, _ := LoadString("[test]\n")
	sec, _ := cfg.GetSection("test")

	_, err := sec.Get("required")
	if err == nil {
		t.Fatal("expected error for missing option")
	}
	cfgErr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if cfgErr.Section != "test" || cfgErr.Option != "required" {
		t.Errorf("unexpected context: %+v", cfgErr)
	}
	if !errors.Is(err, errors.ErrConfigOption) {
		t.Error("expected CONFIG_OPTION code in chain")
	}

	if _, err := cfg.GetSection("nope"); !errors.Is(err, errors.ErrConfigSection) {
		t.Errorf("expected CONFIG_SECTION, got %v", err)
	}
}

func TestEmptySectionHeader(t *testing.T) {
	if _, err := LoadString("[ ]\nkey: v\n"); err == nil {
		t.Error("expected error for empty section header")
	}
	if _, err := LoadString("[include other.cfg]\n"); err == nil {
		t.Error("expected error for include in string config")
	}
}

func TestLoadWithInclude(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	write("server.cfg", "[server]\nprogress_addr: :9000\n")
	main := write("main.cfg", "[include server.cfg]\n[slicer]\nworkers: 2\n")

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sec, err := cfg.GetSection("server")
	if err != nil {
		t.Fatalf("included section missing: %v", err)
	}
	if v, _ := sec.Get("progress_addr"); v != ":9000" {
		t.Errorf("expected ':9000', got '%s'", v)
	}

	loop := write("loop.cfg", "[include loop.cfg]\n")
	if _, err := Load(loop); err == nil || !strings.Contains(err.Error(), "recursive") {
		t.Errorf("expected recursive include error, got %v", err)
	}

	if _, err := Load(write("bad.cfg", "[include missing.cfg]\n")); err == nil {
		t.Error("expected error for missing include")
	}
}

func TestSectionMerge(t *testing.T) {
	cfg, err := LoadString("[slicer]\nworkers: 1\n[slicer]\nworkers: 3\nmax_height: 1\n")
	if err != nil {
		t.Fatal(err)
	}
	sec, _ := cfg.GetSection("slicer")
	if w, _ := sec.GetInt("workers"); w != 3 {
		t.Errorf("later section should override, got %d", w)
	}
	if len(cfg.GetSectionNames()) != 1 {
		t.Errorf("duplicate sections should merge: %v", cfg.GetSectionNames())
	}
}
