package vgasim_test

import (
	"bytes"
	"testing"

	"vgasim"
	"vgasim/modlib"
)

func TestDetectPolarity(t *testing.T) {
	td := []struct {
		name       string
		hLow, vLow bool
	}{
		{"both active low", true, true},
		{"both active high", false, false},
		{"mixed", true, false},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			cfg := modlib.Small() // 4% hsync duty
			cfg.HSyncActiveLow = d.hLow
			cfg.VSyncActiveLow = d.vLow
			in := bindPattern(t, cfg)
			pol, err := vgasim.DetectPolarity(in, 1<<16)
			if err != nil {
				t.Fatal(err)
			}
			if pol.HSyncActiveLow != d.hLow || pol.VSyncActiveLow != d.vLow {
				t.Errorf("got %+v, want hsync=%v vsync=%v", pol, d.hLow, d.vLow)
			}
		})
	}
}

func TestDetectPolarity_timeout(t *testing.T) {
	m, design := modlib.NewFlatline()
	def, pool, err := vgasim.LoadDesign(bytes.NewReader(design))
	if err != nil {
		t.Fatal(err)
	}
	in, err := vgasim.Bind(def, pool, m, vgasim.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer in.Dispose()
	_, err = vgasim.DetectPolarity(in, 1<<12)
	if k := vgasim.KindOf(err); k != vgasim.DetectionTimeout {
		t.Fatalf("kind: got %v, want %v (%v)", k, vgasim.DetectionTimeout, err)
	}
}

func TestSyncToFrame(t *testing.T) {
	cfg := modlib.Small()
	in := bindPattern(t, cfg)
	pol, err := vgasim.DetectPolarity(in, 1<<16)
	if err != nil {
		t.Fatal(err)
	}
	if err := vgasim.SyncToFrame(in, pol, 1<<16); err != nil {
		t.Fatal(err)
	}
	// the reference cycle is the first cycle of the frame
	for _, p := range []string{"top.hcnt", "top.vcnt"} {
		if v, _ := in.GetSignal(p); v != 0 {
			t.Errorf("%s at phase reference: got %d, want 0", p, v)
		}
	}
}

func TestSyncToFrame_timeout(t *testing.T) {
	cfg := modlib.Small()
	in := bindPattern(t, cfg)
	pol, err := vgasim.DetectPolarity(in, 1<<16)
	if err != nil {
		t.Fatal(err)
	}
	// a budget shorter than the distance to the next frame boundary
	err = vgasim.SyncToFrame(in, pol, 3)
	if k := vgasim.KindOf(err); k != vgasim.DetectionTimeout {
		t.Fatalf("kind: got %v, want %v (%v)", k, vgasim.DetectionTimeout, err)
	}
}
