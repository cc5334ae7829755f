package vgasim

// SyncPolarity is the inferred assertion convention of the two sync
// signals. It is derived once per session, after reset, and stays valid
// until the next reset.
type SyncPolarity struct {
	HSyncActiveLow bool
	VSyncActiveLow bool
}

// runTracker accumulates run lengths of a binary signal, one longest run
// per level. A sync pulse is brief next to its idle interval, so the level
// with the shorter longest run is the active one.
type runTracker struct {
	level   bool
	run     int
	longest [2]int // [0] low, [1] high
	toggles int
	primed  bool
}

func (t *runTracker) sample(level bool) {
	if !t.primed {
		t.primed = true
		t.level = level
		t.run = 1
		return
	}
	if level == t.level {
		t.run++
		return
	}
	i := 0
	if t.level {
		i = 1
	}
	if t.run > t.longest[i] {
		t.longest[i] = t.run
	}
	t.toggles++
	t.level = level
	t.run = 1
}

// classify returns activeLow once a complete run of each level has been
// observed.
func (t *runTracker) classify() (activeLow, ok bool) {
	if t.longest[0] == 0 || t.longest[1] == 0 {
		return false, false
	}
	return t.longest[0] < t.longest[1], true
}

// DetectPolarity steps the instance for up to budget cycles, sampling both
// sync signals every cycle, and classifies each signal's active level by
// pulse width: the level occupying short bursts is active, the level
// occupying long stretches is idle.
//
// This is a heuristic, not a protocol guarantee: a design whose sync idles
// for less time than it pulses will be classified inverted. A signal that
// never toggles within the budget yields a DetectionTimeout, never a
// default guess.
func DetectPolarity(in *Instance, budget int) (SyncPolarity, error) {
	var h, v runTracker
	hs, vs := in.syncLevels()
	h.sample(hs)
	v.sample(vs)
	for i := 0; i < budget; i++ {
		if err := in.Step(); err != nil {
			return SyncPolarity{}, err
		}
		hs, vs = in.syncLevels()
		h.sample(hs)
		v.sample(vs)
		// three toggles guarantee a complete run of each level
		if h.toggles >= 3 && v.toggles >= 3 {
			break
		}
	}
	hLow, hOK := h.classify()
	vLow, vOK := v.classify()
	if !hOK {
		return SyncPolarity{}, errf(DetectionTimeout, "hsync did not toggle within %d cycles", budget)
	}
	if !vOK {
		return SyncPolarity{}, errf(DetectionTimeout, "vsync did not toggle within %d cycles", budget)
	}
	return SyncPolarity{HSyncActiveLow: hLow, VSyncActiveLow: vLow}, nil
}

// active normalizes a raw sync level by its polarity.
func active(level, activeLow bool) bool {
	return level != activeLow
}

// SyncToFrame steps the instance until the vertical sync signal, normalized
// by pol, transitions into its active state. That transition is the phase
// reference for start of frame; all cycles before it are discarded. Not
// observing the transition within budget cycles is a DetectionTimeout.
func SyncToFrame(in *Instance, pol SyncPolarity, budget int) error {
	_, vs := in.syncLevels()
	last := active(vs, pol.VSyncActiveLow)
	for i := 0; i < budget; i++ {
		if err := in.Step(); err != nil {
			return err
		}
		_, vs = in.syncLevels()
		cur := active(vs, pol.VSyncActiveLow)
		if cur && !last {
			return nil
		}
		last = cur
	}
	return errf(DetectionTimeout, "no vertical sync transition within %d cycles", budget)
}
