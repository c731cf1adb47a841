package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/data"
	"github.com/gekko3d/realtimemesh/rt/simple"
)

func runInspect(env *toolEnv, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	in := fs.String("in", "", "serialized mesh to read")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("inspect: -in is required")
	}

	f, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	defer f.Close()

	m := simple.NewMesh(env.options())
	if err := m.Load(f); err != nil {
		return fmt.Errorf("inspect %s: %w", *in, err)
	}
	printMesh(stdout, m.Mesh)
	return nil
}

// printMesh writes the LOD/group/section tree with local bounds.
func printMesh(w io.Writer, m *data.Mesh) {
	fmt.Fprintf(w, "mesh forced_lod=%d lods=%d %s\n", m.Config().ForcedLOD, m.GetNumLODs(), formatBounds(m.GetLocalBounds()))
	m.ProcessLODs(func(l *data.LOD) {
		cfg := l.Config()
		fmt.Fprintf(w, "  %s screen_size=%g visible=%t %s\n", l.Key(), cfg.ScreenSize, cfg.IsVisible, formatBounds(l.GetLocalBounds()))
		l.ProcessSectionGroups(func(g *data.SectionGroup) {
			fmt.Fprintf(w, "    %s draw=%s streams=%d sections=%d %s\n",
				g.Key(), g.Config().DrawType, len(g.StreamKeys()), g.NumSections(), formatBounds(g.GetLocalBounds()))
			g.ProcessSections(func(s *data.Section) {
				sc := s.Config()
				fmt.Fprintf(w, "      %s material=%d range=%s mask=%s %s\n",
					s.Key().Name, sc.MaterialSlot, s.StreamRange(), core.DrawMaskFor(sc), formatBounds(s.GetLocalBounds()))
			})
		})
	})
}

func formatBounds(b core.BoxSphereBounds) string {
	return fmt.Sprintf("origin=(%.3g %.3g %.3g) extent=(%.3g %.3g %.3g)",
		b.Origin.X(), b.Origin.Y(), b.Origin.Z(), b.BoxExtent.X(), b.BoxExtent.Y(), b.BoxExtent.Z())
}
