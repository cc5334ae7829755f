// Package simtest provides utility functions for testing preview sessions.
package simtest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"vgasim"
)

// NewSession loads design, binds it to model and returns a renderer over
// the bound instance. The instance is disposed when the test finishes.
func NewSession(t *testing.T, design []byte, model vgasim.Model, cfg vgasim.Config) (*vgasim.Instance, *vgasim.Renderer) {
	t.Helper()
	def, pool, err := vgasim.LoadDesign(bytes.NewReader(design))
	if err != nil {
		t.Fatalf("load design: %v", err)
	}
	in, err := vgasim.Bind(def, pool, model, cfg)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	t.Cleanup(in.Dispose)
	return in, vgasim.NewRenderer(in)
}

// SameFrames builds two independent sessions with mk and checks that they
// produce byte-identical pixel buffers for frames consecutive frames.
// Identical design, model and call sequence must yield identical output.
func SameFrames(t *testing.T, frames int, cfg vgasim.Config, mk func() ([]byte, vgasim.Model)) {
	t.Helper()
	d1, m1 := mk()
	d2, m2 := mk()
	_, r1 := NewSession(t, d1, m1, cfg)
	_, r2 := NewSession(t, d2, m2, cfg)
	for i := 0; i < frames; i++ {
		f1, err := r1.Frame()
		if err != nil {
			t.Fatalf("frame %d, session 1: %v", i, err)
		}
		f2, err := r2.Frame()
		if err != nil {
			t.Fatalf("frame %d, session 2: %v", i, err)
		}
		if diff := cmp.Diff(frameStats(f1), frameStats(f2)); diff != "" {
			t.Fatalf("frame %d differs (-session1 +session2):\n%s", i, diff)
		}
		if !bytes.Equal(f1, f2) {
			t.Fatalf("frame %d: buffers differ", i)
		}
	}
}

// frameStats condenses a pixel buffer into a comparable, diffable summary
// so a mismatch reports something more useful than two megabytes of hex.
func frameStats(buf []byte) map[string]int {
	s := make(map[string]int)
	for i := 0; i+3 < len(buf); i += 4 {
		k := fmt.Sprintf("%02x%02x%02x%02x", buf[i], buf[i+1], buf[i+2], buf[i+3])
		s[k]++
	}
	return s
}
