package vgasim

// A Handle addresses one signal slot in a compiled model's value table.
// Handles are stable for the lifetime of the model.
type Handle int

// Model is the opaque capability wrapping the compiled executable produced
// by the external build step. Implementations normalize width and byte
// order at this boundary: Read returns the signal value right-aligned in a
// uint64 and Write accepts it the same way, so no memory-layout detail
// leaks into the simulation or rendering logic above.
//
// Eval recomputes combinational outputs from the current input values,
// once. Settling to a fixpoint is the caller's job (see Instance.Eval).
// Release frees the model's resources and must be safe to call more than
// once.
type Model interface {
	Lookup(path string) (h Handle, width int, ok bool)
	Read(h Handle) uint64
	Write(h Handle, v uint64)
	Eval() error
	Release()
}
