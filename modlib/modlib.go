// Package modlib provides pure-Go reference models implementing the
// compiled-model contract of package vgasim. They stand in for externally
// compiled designs in tests and in the vgascope command: sync pattern
// generators with configurable timing and polarity, plus fault fixtures
// (combinational loops, evaluation faults, dead sync).
package modlib

import (
	"vgasim"
)

// table is the shared value-table core of all modlib models: a dense slot
// array addressed by handle, with name resolution for Lookup.
type table struct {
	names  map[string]vgasim.Handle
	widths []int
	vals   []uint64
}

func newTable() *table {
	return &table{names: make(map[string]vgasim.Handle)}
}

// def declares a signal slot and returns its handle.
func (t *table) def(path string, width int) vgasim.Handle {
	h := vgasim.Handle(len(t.vals))
	t.names[path] = h
	t.widths = append(t.widths, width)
	t.vals = append(t.vals, 0)
	return h
}

func (t *table) Lookup(path string) (vgasim.Handle, int, bool) {
	h, ok := t.names[path]
	if !ok {
		return 0, 0, false
	}
	return h, t.widths[h], true
}

func (t *table) Read(h vgasim.Handle) uint64 { return t.vals[h] }

func (t *table) Write(h vgasim.Handle, v uint64) { t.vals[h] = v }

func (t *table) Release() {
	t.vals = nil
	t.widths = nil
	t.names = nil
}

func mask(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(w) - 1
}
