package modlib

import (
	"github.com/pkg/errors"

	"vgasim"
)

// basicDesign is the minimal video port set shared by the fault fixtures.
func basicDesign() []byte {
	return PatternConfig{}.withDefaults().Design()
}

// fixture carries the common port slots of the fault models.
type fixture struct {
	*table
	clk, hsync, vsync, red, green, blue vgasim.Handle
}

func newFixture() fixture {
	f := fixture{table: newTable()}
	f.clk = f.def("top.clk", 1)
	f.hsync = f.def("top.hsync", 1)
	f.vsync = f.def("top.vsync", 1)
	f.red = f.def("top.red", 8)
	f.green = f.def("top.green", 8)
	f.blue = f.def("top.blue", 8)
	f.def("top.hcnt", 16)
	f.def("top.vcnt", 16)
	return f
}

// CombLoop models a design with a combinational cycle: one output changes
// on every evaluation, so settling never converges.
type CombLoop struct {
	fixture
}

// NewCombLoop returns the oscillating fixture and its design description.
func NewCombLoop() (*CombLoop, []byte) {
	return &CombLoop{fixture: newFixture()}, basicDesign()
}

func (m *CombLoop) Eval() error {
	m.vals[m.red] ^= 1
	return nil
}

// Faulty models a compiled executable that faults during evaluation.
type Faulty struct {
	fixture
}

// NewFaulty returns the faulting fixture and its design description.
func NewFaulty() (*Faulty, []byte) {
	return &Faulty{fixture: newFixture()}, basicDesign()
}

func (m *Faulty) Eval() error {
	return errors.New("access fault in compiled model")
}

// Flatline models a design whose sync outputs never toggle. Polarity
// detection on it must time out rather than guess.
type Flatline struct {
	fixture
}

// NewFlatline returns the dead-sync fixture and its design description.
func NewFlatline() (*Flatline, []byte) {
	return &Flatline{fixture: newFixture()}, basicDesign()
}

func (m *Flatline) Eval() error {
	m.vals[m.hsync] = 1
	m.vals[m.vsync] = 1
	return nil
}
