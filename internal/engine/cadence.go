package engine

import "time"

// Redraw cadence timings
const (
	InputDebounce        = 500 * time.Millisecond
	ActiveFrameDelay     = 16 * time.Millisecond
	IdleFrameDelay       = 500 * time.Millisecond
	IdleFrameDelayMobile = 1000 * time.Millisecond
)

// Cadence is the redraw rhythm the engine asks of its host
type Cadence int

const (
	// CadenceIdle redraws on a slow timer to pick up late tiles
	CadenceIdle Cadence = iota
	// CadenceActive redraws every frame while the user interacts or an animation runs
	CadenceActive
)

func (c Cadence) String() string {
	if c == CadenceActive {
		return "active"
	}
	return "idle"
}

func (e *Engine) markInput() {
	e.lastInput = e.clock
	e.hasInput = true
}

// Cadence returns the current redraw rhythm
func (e *Engine) Cadence() Cadence {
	if e.anim != nil || len(e.pointers) > 0 {
		return CadenceActive
	}
	if e.hasInput && e.clock-e.lastInput < InputDebounce {
		return CadenceActive
	}
	return CadenceIdle
}

// NextFrameDelay is how long the host should wait before the next Tick
func (e *Engine) NextFrameDelay() time.Duration {
	if e.Cadence() == CadenceActive {
		return ActiveFrameDelay
	}
	if e.opts.Mobile {
		return IdleFrameDelayMobile
	}
	return IdleFrameDelay
}
