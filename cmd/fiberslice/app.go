package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/config"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/gcode"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/job"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/metrics"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/process"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/progressd"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/reactor"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/serial"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/slicer"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/task"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/toolpath"
)

var logger = log.GetLogger("fiberslice")

type options struct {
	seed uint64
	out  string
	send bool
}

// app chains pipeline stages on the reactor. Each stage is a background
// task with a tracked process; its result is collected by the frame poller
// and starts the next stage.
type app struct {
	cfg  *config.SlicerConfig
	opts options

	metrics  *metrics.SlicerMetrics
	tracker  *process.Tracker
	reactor  *reactor.Reactor
	frame    *reactor.Frame
	progress *progressd.Server
	exporter *metrics.MetricsServer

	mu     sync.Mutex
	cancel func()

	done      chan error
	doneOnce  sync.Once
	closeOnce sync.Once
}

func newApp(cfg *config.SlicerConfig, opts options) *app {
	a := &app{
		cfg:     cfg,
		opts:    opts,
		metrics: metrics.NewSlicerMetrics(),
		reactor: reactor.New(),
		done:    make(chan error, 1),
	}
	a.tracker = process.NewTracker(a.metrics)
	a.frame = reactor.NewFrame(a.reactor, reactor.DefaultFrameInterval, a.tracker)
	a.reactor.Run()

	if cfg.ProgressAddr != "" {
		a.progress = progressd.New(progressd.Config{Addr: cfg.ProgressAddr, Tracker: a.tracker})
		go func() {
			if err := a.progress.Start(); err != nil {
				logger.WithError(err).Warn("progress server stopped")
			}
		}()
	}
	if cfg.MetricsAddr != "" {
		mcfg := metrics.DefaultMetricsServerConfig()
		mcfg.Address = cfg.MetricsAddr
		mcfg.Ready = func() bool { return a.metrics.TasksRunning.Get(nil) == 0 }
		a.exporter = metrics.NewMetricsServerWithConfig(a.metrics, mcfg)
		errCh := a.exporter.StartAsync()
		go func() {
			for err := range errCh {
				logger.WithError(err).Warn("metrics server stopped")
			}
		}()
	}
	return a
}

func (a *app) wait() error {
	return <-a.done
}

func (a *app) finish(err error) {
	a.doneOnce.Do(func() { a.done <- err })
}

// interrupt cancels the running stage from any goroutine and ends the
// pipeline. It reports whether a stage was running when the loop handled
// the request.
func (a *app) interrupt(ctx context.Context) bool {
	c := a.reactor.RegisterAsyncCallback(func(float64) any {
		a.mu.Lock()
		cancel := a.cancel
		a.cancel = nil
		a.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		a.finish(errors.TaskCancelledError("pipeline"))
		return cancel != nil
	})
	killed, err := c.WaitContext(ctx)
	if err != nil {
		logger.WithError(err).Warn("interrupt not handled by the loop")
		a.finish(errors.TaskCancelledError("pipeline"))
		return false
	}
	return killed == true
}

func (a *app) close() {
	a.closeOnce.Do(func() {
		a.frame.Stop()
		a.reactor.End()
		a.reactor.Wait()
		if a.progress != nil {
			a.progress.Stop()
		}
		if a.exporter != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			a.exporter.Shutdown(ctx)
		}
	})
}

// stage is the work of one pipeline step. It reports into p.
type stage[T any] func(ctx context.Context, p *process.Process) (T, error)

// runStage starts work as a tracked task and calls next with its value on
// the reactor goroutine. The process is closed once the result is taken.
func runStage[T any](a *app, kind process.Kind, name, label string, work stage[T], next func(T)) {
	p := a.tracker.Add(kind, name)
	p.SetTask(label)

	t := task.New[T](kind.String()+":"+name, task.WithMetrics(a.metrics))
	err := t.Run(func(ctx context.Context) (T, error) {
		defer p.Finish()
		return work(ctx, p)
	})
	if err != nil {
		p.Finish()
		p.Close()
		a.finish(err)
		return
	}

	a.mu.Lock()
	a.cancel = func() {
		t.Kill()
		p.Finish()
		p.Close()
	}
	a.mu.Unlock()

	reactor.PollTask(a.frame, t, func(res task.Result[T]) {
		p.Close()
		if res.Err != nil {
			a.finish(res.Err)
			return
		}
		logger.WithFields(log.Fields{"kind": kind, "name": name}).Debug("stage complete")
		next(res.Value)
	})
}

type sliced struct {
	job     *job.Job
	objects []*slicer.Object
	masks   []*slicer.Mask
}

func (a *app) slice(path string) {
	runStage(a, process.KindLoad, path, "Loading job", func(ctx context.Context, p *process.Process) (*job.Job, error) {
		j, err := job.Load(path)
		if err != nil {
			return nil, err
		}
		if err := j.ValidateFor(a.cfg.Ops()); err != nil {
			return nil, err
		}
		return j, nil
	}, func(j *job.Job) {
		name := j.Name
		if name == "" {
			name = path
		}
		runStage(a, process.KindSlice, name, "Cropping masks", a.cropStage(j), func(s sliced) {
			runStage(a, process.KindGCode, name, "Generating gcode", a.emitStage(s), func(modules []gcode.InstructionModule) {
				runStage(a, process.KindToolpath, name, "Building toolpath", a.toolpathStage(modules), func(buf *toolpath.Buffer) {
					a.report(buf)
					if !a.opts.send {
						a.finish(nil)
						return
					}
					runStage(a, process.KindSend, name, "Sending", a.sendStage(modules), func(n int) {
						logger.Info("printer acknowledged %d instructions", n)
						a.finish(nil)
					})
				})
			})
		})
	})
}

func (a *app) cropStage(j *job.Job) stage[sliced] {
	return func(ctx context.Context, p *process.Process) (sliced, error) {
		objects, masks := j.Slicer()
		opts := []slicer.Option{
			slicer.WithOps(a.cfg.Ops()),
			slicer.WithAreaEpsilon(a.cfg.AreaEpsilon),
			slicer.WithUnderlapMax(a.cfg.UnderlapMax),
			slicer.WithWorkers(a.cfg.Workers),
			slicer.WithMetrics(a.metrics),
			slicer.WithProgress(p.Reporter()),
		}
		if a.opts.seed != 0 {
			opts = append(opts, slicer.WithRand(rand.New(rand.NewPCG(a.opts.seed, a.opts.seed))))
		}
		engine := slicer.NewEngine(opts...)

		maxHeight := a.cfg.MaxHeight
		if j.MaxHeight > 0 {
			maxHeight = j.MaxHeight
		}
		if err := engine.CropMasks(ctx, objects, masks, maxHeight); err != nil {
			return sliced{}, err
		}
		if a.cfg.Randomize {
			p.SetTask("Randomizing underlaps")
			engine.RandomizeMaskUnderlaps(masks)
		}
		return sliced{job: j, objects: objects, masks: masks}, nil
	}
}

func (a *app) emitStage(s sliced) stage[[]gcode.InstructionModule] {
	return func(ctx context.Context, p *process.Process) ([]gcode.InstructionModule, error) {
		ecfg := job.DefaultEmitConfig()
		ecfg.ExtrusionWidth = a.cfg.DefaultWidth
		ecfg.LayerHeight = s.job.LayerHeight
		modules := job.NewEmitter(ecfg).Emit(s.objects, s.masks)
		p.SetProgress(0.5)

		if a.opts.out != "" {
			f, err := os.Create(a.opts.out)
			if err != nil {
				return nil, fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			w := gcode.NewWriter(f)
			for i := range modules {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if err := w.WriteModule(&modules[i]); err != nil {
					return nil, err
				}
			}
			logger.Info("wrote %d lines to %s", w.Lines(), a.opts.out)
		}
		return modules, nil
	}
}

func (a *app) toolpathStage(modules []gcode.InstructionModule) stage[*toolpath.Buffer] {
	return func(ctx context.Context, p *process.Process) (*toolpath.Buffer, error) {
		b := toolpath.NewBuilder(
			toolpath.WithDefaultWidth(a.cfg.DefaultWidth),
			toolpath.WithDefaultHeight(a.cfg.DefaultHeight),
			toolpath.WithBuilderMetrics(a.metrics),
			toolpath.WithBuilderProgress(p.Reporter()),
		)
		return b.Build(modules), nil
	}
}

func (a *app) sendStage(modules []gcode.InstructionModule) stage[int] {
	return func(ctx context.Context, p *process.Process) (int, error) {
		if a.cfg.SerialDevice == "" {
			return 0, errors.New(errors.ErrSerial, "no serial_device configured in [output]")
		}
		device, err := serial.PickDevice(a.cfg.SerialDevice)
		if err != nil {
			return 0, err
		}
		scfg := serial.DefaultConfig()
		scfg.Device = device
		scfg.BaudRate = a.cfg.Baud
		port, err := serial.Open(scfg)
		if err != nil {
			return 0, err
		}
		defer port.Close()
		if err := port.Flush(); err != nil {
			return 0, err
		}
		p.SetTask("Sending to " + port.Device())
		opts := []serial.SenderOption{serial.WithProgress(p.Reporter())}
		if a.cfg.LineNumbers {
			opts = append(opts, serial.WithLineNumbers())
		}
		return serial.NewSender(port, opts...).Send(ctx, modules)
	}
}

func (a *app) parse(path string) {
	runStage(a, process.KindGCode, path, "Parsing gcode", func(ctx context.Context, p *process.Process) ([]gcode.InstructionModule, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		parser := gcode.NewParser(gcode.WithParserMetrics(a.metrics))
		modules, err := parser.Parse(f)
		if err != nil {
			return nil, err
		}
		st := parser.Stats()
		logger.WithFields(log.Fields{
			"lines":        st.Lines,
			"instructions": st.Instructions,
			"modules":      st.Modules,
			"ignored":      st.IgnoredTokens,
			"unknown":      st.UnknownTokens,
		}).Info("parsed %s", path)
		return modules, nil
	}, func(modules []gcode.InstructionModule) {
		runStage(a, process.KindToolpath, path, "Building toolpath", a.toolpathStage(modules), func(buf *toolpath.Buffer) {
			a.report(buf)
			if a.opts.out == "" {
				a.finish(nil)
				return
			}
			a.finish(writeBuffer(a.opts.out, buf))
		})
	})
}

func writeBuffer(path string, buf *toolpath.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	n, err := buf.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	logger.Info("wrote %d bytes of vertex data to %s", n, path)
	return nil
}

// report logs the visible vertex count per print type.
func (a *app) report(buf *toolpath.Buffer) {
	fields := log.Fields{
		"vertices": buf.Len(),
		"segments": len(buf.Groups),
		"layers":   buf.Layers(),
	}
	for _, t := range toolpath.PrintTypes {
		ctx := toolpath.NewContext()
		ctx.Visibility = t.Bit()
		if n := buf.CountVisible(ctx); n > 0 {
			fields[t.String()] = n
		}
	}
	logger.WithFields(fields).Info("toolpath ready")
}
