package config

import (
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/geometry"
)

// SlicerConfig holds the settings of the slicing pipeline and the services
// around it. Every field has a default, so an empty file is valid.
type SlicerConfig struct {
	// [slicer]
	MaxHeight   float64 // baseline threshold: layers at or below are never pruned
	AreaEpsilon float64 // layers with area at or below are pruned
	UnderlapMax float64 // exclusive upper bound of the random mask inset
	Precision   float64 // polygon scaling factor
	Workers     int     // 0 = GOMAXPROCS
	Randomize   bool    // jitter mask insets after cropping

	// [toolpath]
	DefaultWidth  float64
	DefaultHeight float64

	// [server]
	ProgressAddr string
	MetricsAddr  string

	// [output]
	SerialDevice string
	Baud         int
	LineNumbers  bool

	// [log]
	LogLevel string
}

// LogLevels are the accepted [log] level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// DefaultSlicerConfig returns the built-in settings.
func DefaultSlicerConfig() *SlicerConfig {
	return &SlicerConfig{
		MaxHeight:     0.6,
		AreaEpsilon:   1e-6,
		UnderlapMax:   2.0,
		Precision:     geometry.DefaultScale,
		Workers:       0,
		Randomize:     true,
		DefaultWidth:  0.45,
		DefaultHeight: 0.2,
		ProgressAddr:  ":7125",
		MetricsAddr:   "",
		Baud:          250000,
		LogLevel:      "info",
	}
}

// ParseSlicerConfig loads path and extracts the slicer settings.
func ParseSlicerConfig(path string) (*SlicerConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return FromConfig(cfg)
}

// FromConfig extracts the slicer settings from a parsed Config.
func FromConfig(cfg *Config) (*SlicerConfig, error) {
	sc := DefaultSlicerConfig()
	var err error

	sec := cfg.GetSectionOptional("slicer")
	if sc.MaxHeight, err = sec.GetFloatWithBounds("max_height", FloatBounds{MinVal: Float(0)}, sc.MaxHeight); err != nil {
		return nil, err
	}
	if sc.AreaEpsilon, err = sec.GetFloatWithBounds("area_epsilon", FloatBounds{MinVal: Float(0)}, sc.AreaEpsilon); err != nil {
		return nil, err
	}
	if sc.UnderlapMax, err = sec.GetFloatWithBounds("underlap_max", FloatBounds{MinVal: Float(0)}, sc.UnderlapMax); err != nil {
		return nil, err
	}
	if sc.Precision, err = sec.GetFloatWithBounds("precision", FloatBounds{Above: Float(0)}, sc.Precision); err != nil {
		return nil, err
	}
	minWorkers := 0
	if sc.Workers, err = sec.GetIntWithBounds("workers", &minWorkers, nil, sc.Workers); err != nil {
		return nil, err
	}
	if sc.Randomize, err = sec.GetBool("randomize_underlaps", sc.Randomize); err != nil {
		return nil, err
	}

	sec = cfg.GetSectionOptional("toolpath")
	if sc.DefaultWidth, err = sec.GetFloatWithBounds("default_width", FloatBounds{Above: Float(0)}, sc.DefaultWidth); err != nil {
		return nil, err
	}
	if sc.DefaultHeight, err = sec.GetFloatWithBounds("default_height", FloatBounds{Above: Float(0)}, sc.DefaultHeight); err != nil {
		return nil, err
	}

	sec = cfg.GetSectionOptional("server")
	if sc.ProgressAddr, err = sec.Get("progress_addr", sc.ProgressAddr); err != nil {
		return nil, err
	}
	if sc.MetricsAddr, err = sec.Get("metrics_addr", sc.MetricsAddr); err != nil {
		return nil, err
	}

	sec = cfg.GetSectionOptional("output")
	if sc.SerialDevice, err = sec.Get("serial_device", sc.SerialDevice); err != nil {
		return nil, err
	}
	minBaud := 1
	if sc.Baud, err = sec.GetIntWithBounds("baud", &minBaud, nil, sc.Baud); err != nil {
		return nil, err
	}
	if sc.LineNumbers, err = sec.GetBool("line_numbers", sc.LineNumbers); err != nil {
		return nil, err
	}

	sec = cfg.GetSectionOptional("log")
	if sc.LogLevel, err = sec.GetChoice("level", LogLevels, sc.LogLevel); err != nil {
		return nil, err
	}
	return sc, nil
}

// Ops returns the polygon operations configured with Precision.
func (sc *SlicerConfig) Ops() geometry.Ops {
	return geometry.Ops{Scale: sc.Precision}
}
