package modlib

import (
	"encoding/json"

	"vgasim"
)

// A ConstDef declares one literal in the design's constant pool. The pool
// is emitted under the reserved "@const" namespace and its values are
// visible to the Pixel function in declaration order.
type ConstDef struct {
	Name  string
	Width int
	Init  uint64
}

// PatternConfig describes a sync pattern generator: a registered design
// with free-running horizontal and vertical counters driving the sync and
// color ports. Sync pulses occupy the first HSync cycles of each line and
// the first VSync lines of each frame.
type PatternConfig struct {
	HTotal, HSync int // cycles per line, sync pulse width
	VTotal, VSync int // lines per frame, sync pulse lines

	HSyncActiveLow bool
	VSyncActiveLow bool

	RBits, GBits, BBits int // color channel widths, default 8

	// ResetName adds a reset input port of that name. A "_n"/"rstn" style
	// name makes it active low, matching the binder's convention.
	ResetName string

	Consts []ConstDef

	// Pixel returns the raw channel values driven at raster position
	// (x, y), where x counts cycles from the hsync assertion and y lines
	// from the vsync assertion. consts holds the current constant-pool
	// values in declaration order. A nil Pixel drives black.
	Pixel func(x, y int, consts []uint64) (r, g, b uint64)
}

func (c PatternConfig) withDefaults() PatternConfig {
	if c.RBits <= 0 {
		c.RBits = 8
	}
	if c.GBits <= 0 {
		c.GBits = 8
	}
	if c.BBits <= 0 {
		c.BBits = 8
	}
	return c
}

// VGA returns the 640x480@60-equivalent timing: 800 cycles per line, 525
// lines per frame, both sync pulses active low.
func VGA() PatternConfig {
	return PatternConfig{
		HTotal: 800, HSync: 96,
		VTotal: 525, VSync: 2,
		HSyncActiveLow: true,
		VSyncActiveLow: true,
	}
}

// Small returns a scaled-down timing for fast tests: 100 cycles per line
// with a 4 cycle (4%) hsync pulse, 40 lines per frame with a 2 line vsync
// pulse, both active low.
func Small() PatternConfig {
	return PatternConfig{
		HTotal: 100, HSync: 4,
		VTotal: 40, VSync: 2,
		HSyncActiveLow: true,
		VSyncActiveLow: true,
	}
}

// Solid fills the visible region [0,visW)x[0,visH) with the color held in
// the constant pool's fill_r/fill_g/fill_b literals and drives black
// elsewhere, using VGA timing.
func Solid(visW, visH int, r, g, b uint64) PatternConfig {
	c := VGA()
	c.Consts = []ConstDef{
		{Name: "fill_r", Width: 8, Init: r},
		{Name: "fill_g", Width: 8, Init: g},
		{Name: "fill_b", Width: 8, Init: b},
	}
	c.Pixel = func(x, y int, consts []uint64) (uint64, uint64, uint64) {
		if x < visW && y < visH {
			return consts[0], consts[1], consts[2]
		}
		return 0, 0, 0
	}
	return c
}

// Ramp drives a position-coded test color on Small timing: red encodes the
// column, green the row and blue their inverted sum, so pixel (0,0) is
// (0, 0, 255) and distinguishable from the background.
func Ramp() PatternConfig {
	c := Small()
	c.Pixel = func(x, y int, _ []uint64) (uint64, uint64, uint64) {
		return uint64(x) & 0xff, uint64(y) & 0xff, ^uint64(x+y) & 0xff
	}
	return c
}

// Wire-format mirror of the compiler's design description.

type designDoc struct {
	Nodes []designNode `json:"nodes"`
}

type designNode struct {
	Kind      string      `json:"kind"`
	Name      string      `json:"name"`
	Top       bool        `json:"top,omitempty"`
	ConstPool string      `json:"constpool,omitempty"`
	Vars      []designVar `json:"vars,omitempty"`
}

type designVar struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
	Dir   string `json:"dir,omitempty"`
	Init  uint64 `json:"init,omitempty"`
}

// Design emits the JSON design description matching the generator's ports,
// as the external compiler would produce it.
func (c PatternConfig) Design() []byte {
	c = c.withDefaults()
	top := designNode{Kind: "module", Name: "top", Top: true}
	top.Vars = append(top.Vars, designVar{Name: "clk", Width: 1, Dir: "input"})
	if c.ResetName != "" {
		top.Vars = append(top.Vars, designVar{Name: c.ResetName, Width: 1, Dir: "input"})
	}
	top.Vars = append(top.Vars,
		designVar{Name: "hsync", Width: 1, Dir: "output"},
		designVar{Name: "vsync", Width: 1, Dir: "output"},
		designVar{Name: "red", Width: c.RBits, Dir: "output"},
		designVar{Name: "green", Width: c.GBits, Dir: "output"},
		designVar{Name: "blue", Width: c.BBits, Dir: "output"},
		designVar{Name: "hcnt", Width: 16, Dir: "internal"},
		designVar{Name: "vcnt", Width: 16, Dir: "internal"},
	)
	doc := designDoc{Nodes: []designNode{top}}
	if len(c.Consts) > 0 {
		doc.Nodes[0].ConstPool = "@const"
		pool := designNode{Kind: "constpool", Name: "@const"}
		for _, cd := range c.Consts {
			pool.Vars = append(pool.Vars, designVar{Name: cd.Name, Width: cd.Width, Init: cd.Init})
		}
		doc.Nodes = append(doc.Nodes, pool)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		panic(err) // static structure, cannot fail
	}
	return b
}

// Pattern is the compiled-model side of a PatternConfig.
type Pattern struct {
	*table
	c PatternConfig

	clk, rst           vgasim.Handle
	hsync, vsync       vgasim.Handle
	red, green, blue   vgasim.Handle
	hcnt, vcnt         vgasim.Handle
	consts             []vgasim.Handle
	constVals          []uint64
	hasReset, resetLow bool

	lastClk uint64
	h, v    int
}

// NewPattern returns a model for c. Its value table matches c.Design(), so
// the pair binds cleanly through vgasim.Bind.
func NewPattern(c PatternConfig) *Pattern {
	c = c.withDefaults()
	p := &Pattern{table: newTable(), c: c}
	p.clk = p.def("top.clk", 1)
	if c.ResetName != "" {
		p.rst = p.def("top."+c.ResetName, 1)
		p.hasReset = true
		switch c.ResetName {
		case "rst_n", "reset_n", "rstn", "resetn":
			p.resetLow = true
		}
	}
	p.hsync = p.def("top.hsync", 1)
	p.vsync = p.def("top.vsync", 1)
	p.red = p.def("top.red", c.RBits)
	p.green = p.def("top.green", c.GBits)
	p.blue = p.def("top.blue", c.BBits)
	p.hcnt = p.def("top.hcnt", 16)
	p.vcnt = p.def("top.vcnt", 16)
	for _, cd := range c.Consts {
		p.consts = append(p.consts, p.def("@const."+cd.Name, cd.Width))
	}
	p.constVals = make([]uint64, len(p.consts))
	return p
}

// Eval runs one combinational evaluation: counters advance on the clock's
// rising edge, outputs are recomputed from the counters. Repeated calls at
// a stable clock level are stable, so the settle loop converges in one
// round.
func (p *Pattern) Eval() error {
	clk := p.vals[p.clk] & 1
	if clk == 1 && p.lastClk == 0 {
		if p.inReset() {
			p.h, p.v = 0, 0
		} else {
			p.h++
			if p.h == p.c.HTotal {
				p.h = 0
				p.v++
				if p.v == p.c.VTotal {
					p.v = 0
				}
			}
		}
	}
	p.lastClk = clk

	p.vals[p.hsync] = level(p.h < p.c.HSync, p.c.HSyncActiveLow)
	p.vals[p.vsync] = level(p.v < p.c.VSync, p.c.VSyncActiveLow)
	var r, g, b uint64
	if p.c.Pixel != nil {
		for i, h := range p.consts {
			p.constVals[i] = p.vals[h]
		}
		r, g, b = p.c.Pixel(p.h, p.v, p.constVals)
	}
	p.vals[p.red] = r & mask(p.c.RBits)
	p.vals[p.green] = g & mask(p.c.GBits)
	p.vals[p.blue] = b & mask(p.c.BBits)
	p.vals[p.hcnt] = uint64(p.h)
	p.vals[p.vcnt] = uint64(p.v)
	return nil
}

func (p *Pattern) inReset() bool {
	if !p.hasReset {
		return false
	}
	return (p.vals[p.rst]&1 == 1) != p.resetLow
}

func level(active, activeLow bool) uint64 {
	if active != activeLow {
		return 1
	}
	return 0
}
