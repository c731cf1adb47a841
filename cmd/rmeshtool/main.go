// rmeshtool builds serialized realtime meshes from YAML descriptions and
// prints the content of serialized meshes.
//
//	rmeshtool [-config tool.toml] build -in mesh.yaml -out mesh.rmesh
//	rmeshtool [-config tool.toml] inspect -in mesh.rmesh
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gekko3d/realtimemesh/internal/config"
	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/data"
	"github.com/gekko3d/realtimemesh/rt/gpu"
	"github.com/gekko3d/realtimemesh/rt/proxy"
	"github.com/gekko3d/realtimemesh/rt/thread"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "rmeshtool: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("rmeshtool", flag.ContinueOnError)
	configPath := fs.String("config", "", "TOML tool configuration")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: rmeshtool [-config file] build|inspect [flags]")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}

	tool, err := newToolEnv(cfg)
	if err != nil {
		return err
	}
	defer tool.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "build":
		return runBuild(tool, rest, stdout)
	case "inspect":
		return runInspect(tool, rest, stdout)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// toolEnv owns the threads and allocator every command runs against.
type toolEnv struct {
	cfg    *config.Config
	log    *core.ZapLogger
	rt     *thread.RenderThread
	gt     *thread.GameThread
	alloc  proxy.BufferAllocator
	device *gpu.Device
	cancel context.CancelFunc
}

func newToolEnv(cfg *config.Config) (*toolEnv, error) {
	log, err := core.NewZapLogger("rmeshtool", cfg.Debug(), cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	env := &toolEnv{cfg: cfg, log: log}

	switch cfg.GPU.Backend {
	case "wgpu":
		if env.device, err = gpu.OpenHeadless(); err != nil {
			return nil, err
		}
		env.alloc = env.device.Allocator()
	default:
		env.alloc = proxy.NewNullAllocator()
	}

	env.rt = thread.NewRenderThread(cfg.Render.QueueSize, log)
	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	env.gt = thread.NewGameThread()
	env.gt.Start(ctx)
	log.Debugf("gpu backend %s, render queue %d", cfg.GPU.Backend, cfg.Render.QueueSize)
	return env, nil
}

func (e *toolEnv) options() data.Options {
	return data.Options{
		RenderThread: e.rt,
		GameThread:   e.gt,
		Allocator:    e.alloc,
		Logger:       e.log,
	}
}

// flush waits for the render thread within the configured timeout.
func (e *toolEnv) flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Render.FlushTimeout)
	defer cancel()
	if err := e.rt.Flush(ctx); err != nil {
		return fmt.Errorf("flush render thread: %w", err)
	}
	return nil
}

func (e *toolEnv) Close() {
	e.rt.Close()
	e.cancel()
	if e.device != nil {
		e.device.Release()
	}
	_ = e.log.Sync()
}
