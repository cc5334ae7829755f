package vgasim

import (
	"strings"

	"github.com/pkg/errors"
)

// Config carries the stepping and detection budgets of a session. The zero
// value selects defaults suitable for a 640x480-class design.
type Config struct {
	// SettleCap bounds the number of model evaluations per settle. A design
	// that has not settled after SettleCap rounds has a combinational cycle.
	SettleCap int
	// ResetCycles is the number of full clock cycles reset is held asserted.
	ResetCycles int
	// DetectBudget bounds polarity detection, in clock cycles. It must span
	// at least two frame periods so that vsync toggles twice.
	DetectBudget int
	// SyncBudget bounds frame-boundary synchronization, in clock cycles.
	SyncBudget int
	// FrameBudget is the safety ceiling on cycles per rendered frame.
	FrameBudget int
}

const (
	defaultSettleCap    = 64
	defaultResetCycles  = 4
	defaultDetectBudget = 2 << 20 // ~5 frames at 800x525 cycles each
	defaultSyncBudget   = 1 << 20
	defaultFrameBudget  = 1 << 20
)

func (c Config) withDefaults() Config {
	if c.SettleCap <= 0 {
		c.SettleCap = defaultSettleCap
	}
	if c.ResetCycles <= 0 {
		c.ResetCycles = defaultResetCycles
	}
	if c.DetectBudget <= 0 {
		c.DetectBudget = defaultDetectBudget
	}
	if c.SyncBudget <= 0 {
		c.SyncBudget = defaultSyncBudget
	}
	if c.FrameBudget <= 0 {
		c.FrameBudget = defaultFrameBudget
	}
	return c
}

// binding ties one declared signal to its slot in the compiled model.
type binding struct {
	sig *Signal
	h   Handle
}

// Well-known port roles resolved at bind time. A role is matched against
// the lowercased base name of a top-level port.
var (
	clockNames = []string{"clk", "clock"}
	resetNames = []string{"reset", "rst", "rst_n", "rstn", "reset_n", "resetn"}
	hsyncNames = []string{"hsync", "hs", "h_sync", "hsync_n"}
	vsyncNames = []string{"vsync", "vs", "v_sync", "vsync_n"}
	redNames   = []string{"red", "r", "vga_r"}
	greenNames = []string{"green", "g", "vga_g"}
	blueNames  = []string{"blue", "b", "vga_b"}
)

// An Instance is one running binding of a ModuleDef and its ConstPool to a
// compiled model. Instances are single-owner: all stepping is synchronous
// and caller-driven, and no method may be called concurrently.
type Instance struct {
	def   *ModuleDef
	pool  *ConstPool
	model Model
	cfg   Config

	sigs map[string]binding // every declared signal, by path

	clk, rst       binding
	hs, vs         binding
	red, grn, blu  binding
	hasReset       bool
	resetActiveLow bool

	outs []binding // observed by the settle loop
	prev []uint64

	clkLevel bool
	cycle    uint64
	settled  bool
	fatal    error // set once the instance becomes unusable
	disposed bool
}

// Bind resolves the design's signals and well-known video ports against the
// compiled model and returns a ready Instance. The constant pool's initial
// values are applied. All failures are of kind BindError and leave the
// model untouched apart from lookups.
func Bind(def *ModuleDef, pool *ConstPool, model Model, cfg Config) (*Instance, error) {
	in := &Instance{
		def:   def,
		pool:  pool,
		model: model,
		cfg:   cfg.withDefaults(),
		sigs:  make(map[string]binding, len(def.Signals)+len(pool.Signals)),
	}
	for _, s := range def.Signals {
		b, err := resolve(model, s)
		if err != nil {
			return nil, err
		}
		in.sigs[s.Path] = b
	}
	for _, s := range pool.Signals {
		b, err := resolve(model, s)
		if err != nil {
			return nil, err
		}
		in.sigs[s.Path] = b
	}

	var err error
	if in.clk, err = in.port(clockNames, DirInput, 1, true); err != nil {
		return nil, err
	}
	if in.rst, err = in.port(resetNames, DirInput, 1, false); err != nil {
		return nil, err
	}
	in.hasReset = in.rst.sig != nil
	if in.hasReset {
		switch baseName(in.rst.sig.Path) {
		case "rst_n", "reset_n", "rstn", "resetn":
			in.resetActiveLow = true
		}
	}
	if in.hs, err = in.port(hsyncNames, DirOutput, 1, true); err != nil {
		return nil, err
	}
	if in.vs, err = in.port(vsyncNames, DirOutput, 1, true); err != nil {
		return nil, err
	}
	if in.red, err = in.port(redNames, DirOutput, 0, true); err != nil {
		return nil, err
	}
	if in.grn, err = in.port(greenNames, DirOutput, 0, true); err != nil {
		return nil, err
	}
	if in.blu, err = in.port(blueNames, DirOutput, 0, true); err != nil {
		return nil, err
	}

	for _, p := range def.Ports {
		if p.Dir == DirOutput {
			in.outs = append(in.outs, in.sigs[p.Path])
		}
	}
	in.prev = make([]uint64, len(in.outs))
	in.applyConstants()
	return in, nil
}

func resolve(model Model, s *Signal) (binding, error) {
	h, w, ok := model.Lookup(s.Path)
	if !ok {
		return binding{}, errf(BindError, "signal %q not present in compiled model", s.Path)
	}
	if w != s.Width {
		return binding{}, errf(BindError, "signal %q: declared width %d, model width %d", s.Path, s.Width, w)
	}
	return binding{sig: s, h: h}, nil
}

// port finds the first top-level port whose base name matches one of names.
// width 0 accepts any width. A missing required port is a BindError.
func (in *Instance) port(names []string, dir SignalDir, width int, required bool) (binding, error) {
	for _, p := range in.def.Ports {
		if p.Dir != dir {
			continue
		}
		base := baseName(p.Path)
		for _, n := range names {
			if base == n {
				if width != 0 && p.Width != width {
					return binding{}, errf(BindError, "port %q: want width %d, have %d", p.Path, width, p.Width)
				}
				return in.sigs[p.Path], nil
			}
		}
	}
	if required {
		return binding{}, errf(BindError, "no %q port in module %q", names[0], in.def.Name)
	}
	return binding{}, nil
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	return strings.ToLower(path)
}

func (in *Instance) applyConstants() {
	for path, v := range in.pool.Init {
		b := in.sigs[path]
		in.model.Write(b.h, v&widthMask(b.sig.Width))
	}
}

func (in *Instance) usable() error {
	if in.disposed {
		return errf(RuntimeFault, "instance disposed")
	}
	return in.fatal
}

// Eval settles the design's combinational logic: the model is evaluated
// repeatedly until no top-level output changes. Exceeding the iteration cap
// means the design contains a combinational cycle or oscillation and yields
// a ConvergenceError; a model fault yields a RuntimeFault. Either error
// leaves the instance unusable until disposed and rebuilt.
func (in *Instance) Eval() error {
	if err := in.usable(); err != nil {
		return err
	}
	return in.settle()
}

func (in *Instance) settle() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = wrapf(RuntimeFault, errors.Errorf("%v", r), "model fault")
		}
		if err != nil {
			in.fatal = err
			in.settled = false
		}
	}()

	for i := range in.outs {
		in.prev[i] = in.model.Read(in.outs[i].h)
	}
	for n := 0; n < in.cfg.SettleCap; n++ {
		if err := in.model.Eval(); err != nil {
			return wrapf(RuntimeFault, err, "model evaluation")
		}
		changed := false
		for i, b := range in.outs {
			if v := in.model.Read(b.h); v != in.prev[i] {
				in.prev[i] = v
				changed = true
			}
		}
		if !changed {
			in.settled = true
			return nil
		}
	}
	return errf(ConvergenceError, "outputs still changing after %d evaluations", in.cfg.SettleCap)
}

// ClockEdge drives the clock input to level and settles. The cycle counter
// advances on the rising edge.
func (in *Instance) ClockEdge(level bool) error {
	if err := in.usable(); err != nil {
		return err
	}
	var v uint64
	if level {
		v = 1
	}
	in.model.Write(in.clk.h, v)
	if level && !in.clkLevel {
		in.cycle++
	}
	in.clkLevel = level
	return in.settle()
}

// Step runs one full clock cycle: rising edge, then falling edge.
func (in *Instance) Step() error {
	if err := in.ClockEdge(true); err != nil {
		return err
	}
	return in.ClockEdge(false)
}

// Cycle returns the number of rising clock edges seen since bind or the
// last Reset.
func (in *Instance) Cycle() uint64 { return in.cycle }

// Settled reports whether the last evaluation reached a fixpoint.
func (in *Instance) Settled() bool { return in.settled }

// Reset asserts the design's reset input (if it has one) for a fixed number
// of cycles, releases it, re-applies the constant pool and settles. Reset
// is idempotent: with a deterministic model, two consecutive calls leave
// the instance in the same state as one.
func (in *Instance) Reset() error {
	if err := in.usable(); err != nil {
		return err
	}
	if in.hasReset {
		assert, release := uint64(1), uint64(0)
		if in.resetActiveLow {
			assert, release = release, assert
		}
		in.model.Write(in.rst.h, assert)
		if err := in.settle(); err != nil {
			return err
		}
		for i := 0; i < in.cfg.ResetCycles; i++ {
			if err := in.Step(); err != nil {
				return err
			}
		}
		in.model.Write(in.rst.h, release)
	}
	in.applyConstants()
	if err := in.settle(); err != nil {
		return err
	}
	in.cycle = 0
	return nil
}

// GetSignal returns the current value of the signal at path, masked to its
// declared width.
func (in *Instance) GetSignal(path string) (uint64, error) {
	if err := in.usable(); err != nil {
		return 0, err
	}
	b, ok := in.sigs[path]
	if !ok {
		return 0, errf(BindError, "unknown signal path %q", path)
	}
	return in.model.Read(b.h) & widthMask(b.sig.Width), nil
}

// SetSignal writes v to the signal at path. The value is truncated to the
// signal's declared width; a read-back returns the masked value exactly.
func (in *Instance) SetSignal(path string, v uint64) error {
	if err := in.usable(); err != nil {
		return err
	}
	b, ok := in.sigs[path]
	if !ok {
		return errf(BindError, "unknown signal path %q", path)
	}
	in.model.Write(b.h, v&widthMask(b.sig.Width))
	return nil
}

// Dispose releases the compiled model's resources. It is safe to call
// multiple times; all other operations fail once the instance is disposed.
func (in *Instance) Dispose() {
	if in.disposed {
		return
	}
	in.disposed = true
	in.model.Release()
}

// syncLevels samples the raw hsync and vsync levels.
func (in *Instance) syncLevels() (hs, vs bool) {
	return in.model.Read(in.hs.h)&1 != 0, in.model.Read(in.vs.h)&1 != 0
}

// sampleRGB reads the color channels and stretches each to 8 bits.
func (in *Instance) sampleRGB() (r, g, b uint8) {
	r = stretch(in.model.Read(in.red.h), in.red.sig.Width)
	g = stretch(in.model.Read(in.grn.h), in.grn.sig.Width)
	b = stretch(in.model.Read(in.blu.h), in.blu.sig.Width)
	return r, g, b
}

// stretch expands a w bit channel value to 8 bits by bit replication, so
// that all-ones maps to 255 and zero to 0 for any native width.
func stretch(v uint64, w int) uint8 {
	v &= widthMask(w)
	if w >= 8 {
		return uint8(v >> uint(w-8))
	}
	for w < 8 {
		v = v<<uint(w) | v
		w *= 2
	}
	return uint8(v >> uint(w-8))
}
