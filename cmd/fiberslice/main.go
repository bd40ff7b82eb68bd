// fiberslice runs the slicing core from the command line: it crops the
// support masks of a job against its objects, emits perimeter GCode and
// builds the toolpath vertex buffer, optionally streaming the result to a
// printer. Progress is published on a websocket while stages run.
//
// Usage:
//
//	fiberslice [options] slice <job.yaml>
//	fiberslice [options] parse <file.gcode>
//
// Options:
//
//	-config string   Slicer configuration file (default: built-in settings)
//	-logfile string  Log file path (default: stderr)
//	-seed uint       Seed for the mask underlap jitter (0 = random)
//	-out string      Output path (GCode for slice, vertex buffer for parse)
//	-send            Stream the sliced GCode to [output] serial_device
//	-debug           Enable debug logging
//
// Examples:
//
//	# Slice a job into a GCode file with a fixed seed
//	fiberslice -seed 42 -out part.gcode slice part.yaml
//
//	# Inspect a GCode file and dump its vertex buffer
//	fiberslice -out part.bin parse part.gcode
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/config"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
)

func main() {
	configFile := flag.String("config", "", "Slicer configuration file")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	seed := flag.Uint64("seed", 0, "Seed for the mask underlap jitter (0 = random)")
	out := flag.String("out", "", "Output path")
	send := flag.Bool("send", false, "Stream sliced GCode to the configured serial device")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}
	command, input := flag.Arg(0), flag.Arg(1)

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.Default().SetWriter(f)
		log.Default().SetColorize(false)
	}
	logger := log.GetLogger("main")

	sc := config.DefaultSlicerConfig()
	if *configFile != "" {
		cfg, err := config.Load(*configFile)
		if err != nil {
			logger.Error("Error loading config: %v", err)
			os.Exit(1)
		}
		if sc, err = config.FromConfig(cfg); err != nil {
			logger.Error("Error parsing config: %v", err)
			os.Exit(1)
		}
		if err := cfg.CheckUnusedOptions(); err != nil {
			logger.Warn("%v", err)
		}
	}

	if os.Getenv("FIBERSLICE_LOG_LEVEL") == "" {
		log.Default().SetLevel(log.ParseLevel(sc.LogLevel))
	}
	if *debug {
		log.Default().SetLevel(log.DEBUG)
	}

	a := newApp(sc, options{seed: *seed, out: *out, send: *send})
	defer a.close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("interrupted, cancelling")
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if !a.interrupt(ctx) {
			logger.Debug("no stage was running")
		}
	}()

	switch command {
	case "slice":
		a.slice(input)
	case "parse":
		a.parse(input)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", command)
		usage()
		os.Exit(2)
	}

	if err := a.wait(); err != nil {
		logger.WithError(err).Error("%s failed", command)
		a.close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] slice <job.yaml>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s [options] parse <file.gcode>\n\nOptions:\n", os.Args[0])
	flag.PrintDefaults()
}
