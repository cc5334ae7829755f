package vgasim_test

import (
	"bytes"
	"strings"
	"testing"

	"vgasim"
	"vgasim/modlib"
)

func bindPattern(t *testing.T, cfg modlib.PatternConfig) *vgasim.Instance {
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

func TestBind_errors(t *testing.T) {
	t.Run("missing signal", func(t *testing.T) {
		// the description declares a debug var the model does not carry
		doc := `{"nodes": [{"kind": "module", "name": "top", "top": true, "vars": [
			{"name": "clk", "width": 1, "dir": "input"},
			{"name": "hsync", "width": 1, "dir": "output"},
			{"name": "vsync", "width": 1, "dir": "output"},
			{"name": "red", "width": 8, "dir": "output"},
			{"name": "green", "width": 8, "dir": "output"},
			{"name": "blue", "width": 8, "dir": "output"},
			{"name": "debug", "width": 8, "dir": "output"}]}]}`
		def, pool, err := vgasim.LoadDesign(strings.NewReader(doc))
		if err != nil {
			t.Fatal(err)
		}
		_, err = vgasim.Bind(def, pool, modlib.NewPattern(modlib.Small()), vgasim.Config{})
		if k := vgasim.KindOf(err); k != vgasim.BindError {
			t.Errorf("kind: got %v, want %v (%v)", k, vgasim.BindError, err)
		}
	})
	t.Run("width mismatch", func(t *testing.T) {
		cfg := modlib.Small()
		cfg.RBits = 4
		def, pool, err := vgasim.LoadDesign(bytes.NewReader(cfg.Design()))
		if err != nil {
			t.Fatal(err)
		}
		// model built with the default 8 bit channel
		_, err = vgasim.Bind(def, pool, modlib.NewPattern(modlib.Small()), vgasim.Config{})
		if k := vgasim.KindOf(err); k != vgasim.BindError {
			t.Errorf("kind: got %v, want %v (%v)", k, vgasim.BindError, err)
		}
	})
	t.Run("missing sync port", func(t *testing.T) {
		doc := `{"nodes": [{"kind": "module", "name": "top", "top": true, "vars": [
			{"name": "clk", "width": 1, "dir": "input"}]}]}`
		def, pool, err := vgasim.LoadDesign(strings.NewReader(doc))
		if err != nil {
			t.Fatal(err)
		}
		m := modlib.NewPattern(modlib.Small())
		_, err = vgasim.Bind(def, pool, m, vgasim.Config{})
		if k := vgasim.KindOf(err); k != vgasim.BindError {
			t.Errorf("kind: got %v, want %v (%v)", k, vgasim.BindError, err)
		}
	})
}

func TestSetGet_roundTrip(t *testing.T) {
	in := bindPattern(t, modlib.Small())
	td := []struct {
		path  string
		v     uint64
		want  uint64
		width int
	}{
		{"top.hcnt", 0x12345, 0x2345, 16},
		{"top.clk", 2, 0, 1},
		{"top.red", 0x1ff, 0xff, 8},
		{"top.vcnt", 7, 7, 16},
	}
	for _, d := range td {
		if err := in.SetSignal(d.path, d.v); err != nil {
			t.Fatal(err)
		}
		got, err := in.GetSignal(d.path)
		if err != nil {
			t.Fatal(err)
		}
		if got != d.want {
			t.Errorf("%s: wrote %#x, read %#x, want %#x", d.path, d.v, got, d.want)
		}
	}
	if _, err := in.GetSignal("top.ghost"); vgasim.KindOf(err) != vgasim.BindError {
		t.Errorf("unknown path: got %v", err)
	}
}

func instState(t *testing.T, in *vgasim.Instance) map[string]uint64 {
	t.Helper()
	state := make(map[string]uint64)
	for _, p := range []string{"top.hcnt", "top.vcnt", "top.hsync", "top.vsync", "top.red", "top.green", "top.blue"} {
		v, err := in.GetSignal(p)
		if err != nil {
			t.Fatal(err)
		}
		state[p] = v
	}
	state["cycle"] = in.Cycle()
	return state
}

func TestReset_idempotent(t *testing.T) {
	cfg := modlib.Ramp()
	cfg.ResetName = "rst"
	in := bindPattern(t, cfg)

	// run away from the initial state first
	for i := 0; i < 137; i++ {
		if err := in.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if err := in.Reset(); err != nil {
		t.Fatal(err)
	}
	once := instState(t, in)
	if err := in.Reset(); err != nil {
		t.Fatal(err)
	}
	twice := instState(t, in)
	for k, v := range once {
		if twice[k] != v {
			t.Errorf("%s: after one reset %#x, after two %#x", k, v, twice[k])
		}
	}
	if once["cycle"] != 0 {
		t.Errorf("cycle after reset: got %d, want 0", once["cycle"])
	}
}

func TestReset_activeLow(t *testing.T) {
	cfg := modlib.Ramp()
	cfg.ResetName = "rst_n"
	in := bindPattern(t, cfg)
	for i := 0; i < 57; i++ {
		if err := in.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if err := in.Reset(); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"top.hcnt", "top.vcnt"} {
		if v, _ := in.GetSignal(p); v != 0 {
			t.Errorf("%s after reset: got %d, want 0", p, v)
		}
	}
}

func TestEval_convergenceError(t *testing.T) {
	m, design := modlib.NewCombLoop()
	def, pool, err := vgasim.LoadDesign(bytes.NewReader(design))
	if err != nil {
		t.Fatal(err)
	}
	in, err := vgasim.Bind(def, pool, m, vgasim.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer in.Dispose()
	err = in.Eval()
	if k := vgasim.KindOf(err); k != vgasim.ConvergenceError {
		t.Fatalf("kind: got %v, want %v (%v)", k, vgasim.ConvergenceError, err)
	}
	// the instance is unusable until disposed and rebuilt
	if err := in.Step(); err == nil {
		t.Error("step on dead instance succeeded")
	}
}

func TestEval_modelError(t *testing.T) {
	m, design := modlib.NewFaulty()
	def, pool, err := vgasim.LoadDesign(bytes.NewReader(design))
	if err != nil {
		t.Fatal(err)
	}
	in, err := vgasim.Bind(def, pool, m, vgasim.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer in.Dispose()
	if k := vgasim.KindOf(in.Eval()); k != vgasim.RuntimeFault {
		t.Fatalf("kind: got %v, want %v", k, vgasim.RuntimeFault)
	}
}

// panicModel wraps a healthy model with an Eval that aborts, as a crashing
// compiled executable would.
type panicModel struct{ vgasim.Model }

func (panicModel) Eval() error { panic("bad memory access") }

func TestEval_modelPanic(t *testing.T) {
	cfg := modlib.Small()
	def, pool, err := vgasim.LoadDesign(bytes.NewReader(cfg.Design()))
	if err != nil {
		t.Fatal(err)
	}
	in, err := vgasim.Bind(def, pool, panicModel{modlib.NewPattern(cfg)}, vgasim.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer in.Dispose()
	if k := vgasim.KindOf(in.Eval()); k != vgasim.RuntimeFault {
		t.Fatalf("kind: got %v, want %v", k, vgasim.RuntimeFault)
	}
}

func TestDispose(t *testing.T) {
	in := bindPattern(t, modlib.Small())
	in.Dispose()
	in.Dispose() // idempotent
	if err := in.Step(); err == nil {
		t.Error("step on disposed instance succeeded")
	}
	if _, err := in.GetSignal("top.hcnt"); err == nil {
		t.Error("read on disposed instance succeeded")
	}
}
