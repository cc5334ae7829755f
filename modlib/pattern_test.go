package modlib_test

import (
	"bytes"
	"testing"

	"vgasim"
	"vgasim/modlib"
)

func bind(t *testing.T, cfg modlib.PatternConfig) *vgasim.Instance {
	t.Helper()
	def, pool, err := vgasim.LoadDesign(bytes.NewReader(cfg.Design()))
	if err != nil {
		t.Fatal(err)
	}
	in, err := vgasim.Bind(def, pool, modlib.NewPattern(cfg), vgasim.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(in.Dispose)
	return in
}

// Every generated description must bind cleanly against its own model.
func TestDesignMatchesModel(t *testing.T) {
	withReset := modlib.Small()
	withReset.ResetName = "rst_n"
	narrow := modlib.Small()
	narrow.RBits, narrow.GBits, narrow.BBits = 4, 4, 4
	td := []struct {
		name string
		cfg  modlib.PatternConfig
	}{
		{"small", modlib.Small()},
		{"vga", modlib.VGA()},
		{"ramp", modlib.Ramp()},
		{"solid", modlib.Solid(600, 440, 255, 0, 0)},
		{"with reset", withReset},
		{"narrow channels", narrow},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			bind(t, d.cfg)
		})
	}
}

func TestPattern_syncDuty(t *testing.T) {
	in := bind(t, modlib.Small())
	activeH, activeV := 0, 0
	const cycles = 300 // three full lines
	for i := 0; i < cycles; i++ {
		if err := in.Step(); err != nil {
			t.Fatal(err)
		}
		if v, _ := in.GetSignal("top.hsync"); v == 0 { // active low
			activeH++
		}
		if v, _ := in.GetSignal("top.vsync"); v == 0 {
			activeV++
		}
	}
	// 4 active cycles per 100 cycle line
	if activeH != 12 {
		t.Errorf("hsync active cycles: got %d, want 12", activeH)
	}
	// vsync active for the first 2 of 40 lines; the walk starts inside the
	// pulse at (0,0), so 2 lines minus the initial cycle remain
	if activeV != 199 {
		t.Errorf("vsync active cycles: got %d, want 199", activeV)
	}
}

func TestPattern_constPool(t *testing.T) {
	in := bind(t, modlib.Solid(600, 440, 170, 85, 255))
	if err := in.Eval(); err != nil {
		t.Fatal(err)
	}
	want := map[string]uint64{"top.red": 170, "top.green": 85, "top.blue": 255}
	for p, w := range want {
		if v, _ := in.GetSignal(p); v != w {
			t.Errorf("%s at (0,0): got %d, want %d", p, v, w)
		}
	}
	// literals themselves are readable under the pool namespace
	if v, _ := in.GetSignal("@const.fill_g"); v != 85 {
		t.Errorf("@const.fill_g: got %d, want 85", v)
	}
}
