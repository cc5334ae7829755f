package vgasim

// Fixed raster geometry. The renderer always captures this window relative
// to the detected sync phase, whatever the design's actual timing: column 0
// is the cycle of the hsync assertion, row 0 the line of the vsync
// assertion.
const (
	Width  = 640
	Height = 480
	// FrameBytes is the size of one rendered frame: row-major RGBA8.
	FrameBytes = Width * Height * 4
)

type sessionState int

const (
	stateDetecting sessionState = iota
	stateSynchronizing
	stateRendering
	stateFailed
)

// A Renderer is one preview session over an Instance. The first Frame call
// resets the design, detects sync polarity and locks onto the frame phase;
// subsequent calls render from the retained lock, one frame per call.
//
// Rendering is synchronous and CPU bound. A Renderer must not be shared:
// the caller must await completion of one Frame call before issuing the
// next. Any error latches the session; the instance must then be disposed
// and rebuilt.
type Renderer struct {
	in    *Instance
	pol   SyncPolarity
	state sessionState
	err   error
}

// NewRenderer returns a session in the detecting state. Budgets come from
// the instance's Config.
func NewRenderer(in *Instance) *Renderer {
	return &Renderer{in: in, state: stateDetecting}
}

// Polarity returns the detected sync polarity. It is only meaningful after
// the first successful Frame call.
func (r *Renderer) Polarity() SyncPolarity { return r.pol }

func (r *Renderer) fail(err error) error {
	r.state = stateFailed
	r.err = err
	if r.in.fatal == nil {
		r.in.fatal = err
	}
	return err
}

// Frame renders exactly one complete frame and returns its pixel buffer,
// Width x Height row-major RGBA8 with opaque alpha. Ownership of the buffer
// passes to the caller; a fresh buffer is allocated per frame. Cycles
// outside the capture window are not sampled and keep the opaque black
// background. Frame returns a complete valid frame or an error, never a
// partially filled buffer.
func (r *Renderer) Frame() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.state == stateDetecting {
		if err := r.in.Reset(); err != nil {
			return nil, r.fail(err)
		}
		pol, err := DetectPolarity(r.in, r.in.cfg.DetectBudget)
		if err != nil {
			return nil, r.fail(err)
		}
		r.pol = pol
		r.state = stateSynchronizing
	}
	if r.state == stateSynchronizing {
		if err := SyncToFrame(r.in, r.pol, r.in.cfg.SyncBudget); err != nil {
			return nil, r.fail(err)
		}
		r.state = stateRendering
	}
	buf, err := r.render()
	if err != nil {
		return nil, r.fail(err)
	}
	return buf, nil
}

// render steps from the phase reference through exactly one vertical sync
// assertion. On return the instance sits on the next frame's reference
// cycle, so the lock carries over.
func (r *Renderer) render() ([]byte, error) {
	buf := make([]byte, FrameBytes)
	for i := 3; i < len(buf); i += 4 {
		buf[i] = 0xff
	}

	sample := func(col, row int) {
		if col >= Width || row >= Height {
			return
		}
		red, grn, blu := r.in.sampleRGB()
		o := (row*Width + col) * 4
		buf[o+0] = red
		buf[o+1] = grn
		buf[o+2] = blu
	}

	hs, vs := r.in.syncLevels()
	lastHS := active(hs, r.pol.HSyncActiveLow)
	lastVS := active(vs, r.pol.VSyncActiveLow)
	col, row := 0, 0
	sample(0, 0) // the reference cycle is pixel (0,0)

	for n := 0; n < r.in.cfg.FrameBudget; n++ {
		if err := r.in.Step(); err != nil {
			return nil, err
		}
		hs, vs = r.in.syncLevels()
		curHS := active(hs, r.pol.HSyncActiveLow)
		curVS := active(vs, r.pol.VSyncActiveLow)
		if curVS && !lastVS {
			// next frame's reference: one full frame period stepped
			return buf, nil
		}
		if curHS && !lastHS {
			row++
			col = 0
		} else {
			col++
		}
		sample(col, row)
		lastHS, lastVS = curHS, curVS
	}
	return nil, errf(DetectionTimeout, "no frame boundary within %d cycles", r.in.cfg.FrameBudget)
}
