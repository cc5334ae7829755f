// Command vgascope previews a fixture design: it renders one frame to a
// PNG and can plot the design's sync waveforms.
//
// Usage:
//
//	vgascope <solid|ramp|bars> frame.png [trace.png [cycles]]
package main

import (
	"bytes"
	"image"
	"image/png"
	"log"
	"os"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"vgasim"
	"vgasim/modlib"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("vgascope: ")
	if len(os.Args) < 3 {
		log.Fatal("usage: vgascope <solid|ramp|bars> frame.png [trace.png [cycles]]")
	}
	cfg := fixture(os.Args[1])

	in := bind(cfg)
	defer in.Dispose()
	r := vgasim.NewRenderer(in)
	frame, err := r.Frame()
	if err != nil {
		log.Fatalf("render: %v", err)
	}
	pol := r.Polarity()
	log.Printf("polarity: hsync active %s, vsync active %s", lowHigh(pol.HSyncActiveLow), lowHigh(pol.VSyncActiveLow))
	if err := writePNG(os.Args[2], frame); err != nil {
		log.Fatalf("write frame: %v", err)
	}

	if len(os.Args) > 3 {
		cycles := 4 * cfg.HTotal
		if len(os.Args) > 4 {
			cycles, err = strconv.Atoi(os.Args[4])
			if err != nil {
				log.Fatalf("bad cycle count %q", os.Args[4])
			}
		}
		// trace on a fresh instance so the plot starts from reset
		tin := bind(cfg)
		defer tin.Dispose()
		if err := tracePlot(tin, os.Args[3], cycles); err != nil {
			log.Fatalf("trace: %v", err)
		}
	}
}

func lowHigh(activeLow bool) string {
	if activeLow {
		return "low"
	}
	return "high"
}

func fixture(name string) modlib.PatternConfig {
	switch name {
	case "solid":
		return modlib.Solid(600, 440, 255, 0, 0)
	case "ramp":
		return modlib.Ramp()
	case "bars":
		c := modlib.VGA()
		c.Pixel = func(x, y int, _ []uint64) (uint64, uint64, uint64) {
			bar := x / 80 % 8
			var r, g, b uint64
			if bar&4 != 0 {
				r = 255
			}
			if bar&2 != 0 {
				g = 255
			}
			if bar&1 != 0 {
				b = 255
			}
			return r, g, b
		}
		return c
	}
	log.Fatalf("unknown fixture %q", name)
	return modlib.PatternConfig{}
}

func bind(cfg modlib.PatternConfig) *vgasim.Instance {
	def, pool, err := vgasim.LoadDesign(bytes.NewReader(cfg.Design()))
	if err != nil {
		log.Fatalf("load design: %v", err)
	}
	in, err := vgasim.Bind(def, pool, modlib.NewPattern(cfg), vgasim.Config{})
	if err != nil {
		log.Fatalf("bind: %v", err)
	}
	return in
}

func writePNG(name string, frame []byte) error {
	img := &image.RGBA{
		Pix:    frame,
		Stride: vgasim.Width * 4,
		Rect:   image.Rect(0, 0, vgasim.Width, vgasim.Height),
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// tracePlot steps the instance and plots the raw hsync/vsync levels, vsync
// offset above hsync for readability.
func tracePlot(in *vgasim.Instance, name string, cycles int) error {
	if err := in.Reset(); err != nil {
		return err
	}
	hpts := make(plotter.XYs, 0, cycles)
	vpts := make(plotter.XYs, 0, cycles)
	for i := 0; i < cycles; i++ {
		if err := in.Step(); err != nil {
			return err
		}
		hs, err := in.GetSignal("top.hsync")
		if err != nil {
			return err
		}
		vs, err := in.GetSignal("top.vsync")
		if err != nil {
			return err
		}
		hpts = append(hpts, plotter.XY{X: float64(i), Y: float64(hs)})
		vpts = append(vpts, plotter.XY{X: float64(i), Y: float64(vs) + 1.5})
	}

	p := plot.New()
	p.Title.Text = "sync signals"
	p.X.Label.Text = "cycle"
	p.Y.Label.Text = "level"
	hl, err := plotter.NewLine(hpts)
	if err != nil {
		return err
	}
	vl, err := plotter.NewLine(vpts)
	if err != nil {
		return err
	}
	p.Add(hl, vl)
	p.Legend.Add("hsync", hl)
	p.Legend.Add("vsync (+1.5)", vl)
	return p.Save(30*vg.Centimeter, 8*vg.Centimeter, name)
}
