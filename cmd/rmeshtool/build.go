package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/meshdesc"
	"github.com/gekko3d/realtimemesh/rt/proxy"
)

func runBuild(env *toolEnv, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	in := fs.String("in", "", "YAML mesh description")
	out := fs.String("out", "", "serialized mesh to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("build: -in and -out are required")
	}

	desc, err := meshdesc.Load(*in)
	if err != nil {
		return err
	}
	if len(desc.LODs) > env.cfg.Output.MaxLODs {
		return fmt.Errorf("build: %s has %d LODs, the configured limit is %d", *in, len(desc.LODs), env.cfg.Output.MaxLODs)
	}
	m, err := desc.Build(env.options())
	if err != nil {
		return err
	}

	// Upload through the configured allocator before anything is written.
	p := m.GetRenderProxy(true)
	var calls []proxy.DrawCall
	if err := env.rt.Enqueue("CountDrawCalls", func() {
		calls = p.CollectDrawCalls(math.MaxFloat32, core.DrawMainPass)
	}); err != nil {
		return err
	}
	if err := env.flush(); err != nil {
		return err
	}
	m.ReleaseRenderProxy()

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if err := m.SaveVersion(f, env.cfg.Output.Version); err != nil {
		f.Close()
		return fmt.Errorf("build: write %s: %w", *out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("build: close %s: %w", *out, err)
	}

	env.log.Infof("built %s: %d LODs, %d main pass draw calls at LOD0, archive version %d", *out, m.GetNumLODs(), len(calls), env.cfg.Output.Version)
	fmt.Fprintf(stdout, "%s: %d LODs, %d draw calls\n", *out, m.GetNumLODs(), len(calls))
	return nil
}
