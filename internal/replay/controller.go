package replay

import (
	"sync"
	"time"

	"github.com/sonpham-org/poly/internal/domain"
)

const (
	// baseTickInterval is the autoplay advance interval at speed 1.
	baseTickInterval = 500 * time.Millisecond

	// minTickInterval floors the interval so high speed multipliers
	// cannot produce a zero or negative delay.
	minTickInterval = 50 * time.Millisecond
)

// Frame is the externally visible playback state after a transition or
// autoplay tick. Presentation collaborators must only ever render trades
// up to and including CurrentIndex.
type Frame struct {
	CurrentIndex  int           `json:"currentIndex"`
	Total         int           `json:"total"`
	IsPlaying     bool          `json:"isPlaying"`
	Speed         float64       `json:"speed"`
	CurrentTrade  *domain.Trade `json:"currentTrade,omitempty"`
	PreviousTrade *domain.Trade `json:"previousTrade,omitempty"`
}

// Controller is the replay playback state machine. It holds a fixed trade
// sequence, a cursor, and the play/pause/speed transport state, and owns
// at most one pending autoplay timer: every transition first cancels any
// pending timer, then optionally schedules exactly one new one, so ticks
// can never overlap.
//
// All methods are safe for concurrent use. The onFrame callback is invoked
// outside the controller lock after every state change.
type Controller struct {
	mu      sync.Mutex
	trades  []domain.Trade
	prices  []domain.PricePoint
	idx     int
	playing bool
	speed   float64
	timer   *time.Timer
	gen     uint64
	closed  bool
	onFrame func(Frame)
}

// NewController creates a paused Controller with an empty sequence and
// speed 1. onFrame may be nil when the caller polls Frame instead.
func NewController(onFrame func(Frame)) *Controller {
	return &Controller{
		speed:   1,
		onFrame: onFrame,
	}
}

// BeginLoad marks the start of a data fetch for a new market and returns a
// generation token. Playback pauses and any pending tick is cancelled. A
// later CompleteLoad with a token that is no longer current is discarded,
// so a slow response for a market the session has already left can never
// overwrite the newer selection.
func (c *Controller) BeginLoad() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.playing = false
	c.gen++
	return c.gen
}

// CompleteLoad installs a freshly built sequence and price series. It
// returns domain.ErrStaleLoad when token does not match the most recent
// BeginLoad, in which case the payload is dropped.
func (c *Controller) CompleteLoad(token uint64, trades []domain.Trade, prices []domain.PricePoint) error {
	c.mu.Lock()
	if c.closed || token != c.gen {
		c.mu.Unlock()
		return domain.ErrStaleLoad
	}
	c.cancelTimerLocked()
	c.trades = trades
	c.prices = prices
	c.idx = 0
	c.playing = false
	frame := c.frameLocked()
	c.mu.Unlock()

	c.emit(frame)
	return nil
}

// TogglePlay flips between playing and paused. Toggling play while paused
// at the last trade restarts from the beginning; autoplay itself never
// loops.
func (c *Controller) TogglePlay() {
	c.mu.Lock()
	if c.closed || len(c.trades) == 0 {
		c.mu.Unlock()
		return
	}
	c.cancelTimerLocked()

	if !c.playing && c.idx >= len(c.trades)-1 {
		c.idx = 0
	}
	c.playing = !c.playing
	if c.playing {
		c.scheduleTickLocked()
	}
	frame := c.frameLocked()
	c.mu.Unlock()

	c.emit(frame)
}

// StepForward pauses playback and advances the cursor by one, clamped to
// the last trade.
func (c *Controller) StepForward() {
	c.step(1)
}

// StepBack pauses playback and moves the cursor back by one, clamped to
// the first trade.
func (c *Controller) StepBack() {
	c.step(-1)
}

func (c *Controller) step(delta int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cancelTimerLocked()
	c.playing = false
	c.idx = clamp(c.idx+delta, 0, len(c.trades)-1)
	frame := c.frameLocked()
	c.mu.Unlock()

	c.emit(frame)
}

// Seek pauses playback and moves the cursor to i, clamped to the sequence
// bounds.
func (c *Controller) Seek(i int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cancelTimerLocked()
	c.playing = false
	c.idx = clamp(i, 0, len(c.trades)-1)
	frame := c.frameLocked()
	c.mu.Unlock()

	c.emit(frame)
}

// SetSpeed changes the playback speed multiplier without changing the
// play/pause state. While playing, the pending tick is rescheduled at the
// new interval.
func (c *Controller) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.speed = speed
	if c.playing {
		c.cancelTimerLocked()
		c.scheduleTickLocked()
	}
	frame := c.frameLocked()
	c.mu.Unlock()

	c.emit(frame)
}

// Frame returns the current playback state.
func (c *Controller) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameLocked()
}

// Visible returns the prefix of the sequence up to and including the
// cursor. The caller must treat the returned slice as read-only.
func (c *Controller) Visible() []domain.Trade {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.trades) == 0 {
		return nil
	}
	return c.trades[:c.idx+1]
}

// Trades returns the full loaded sequence (read-only).
func (c *Controller) Trades() []domain.Trade {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trades
}

// PriceHistory returns the loaded price series (read-only).
func (c *Controller) PriceHistory() []domain.PricePoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prices
}

// TickInterval reports the autoplay delay for the given speed multiplier.
func TickInterval(speed float64) time.Duration {
	if speed <= 0 {
		return baseTickInterval
	}
	d := time.Duration(float64(baseTickInterval) / speed)
	if d < minTickInterval {
		d = minTickInterval
	}
	return d
}

// Close pauses playback, cancels any pending tick, and invalidates
// outstanding load tokens. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.playing = false
	c.closed = true
	c.gen++
}

// --------------------------------------------------------------------------
// Internals
// --------------------------------------------------------------------------

func (c *Controller) frameLocked() Frame {
	f := Frame{
		CurrentIndex: c.idx,
		Total:        len(c.trades),
		IsPlaying:    c.playing,
		Speed:        c.speed,
	}
	if c.idx < len(c.trades) {
		t := c.trades[c.idx]
		f.CurrentTrade = &t
	}
	if c.idx > 0 && c.idx-1 < len(c.trades) {
		p := c.trades[c.idx-1]
		f.PreviousTrade = &p
	}
	return f
}

// cancelTimerLocked stops the pending tick, if any. Callers hold c.mu.
func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// scheduleTickLocked arms exactly one autoplay timer. Callers hold c.mu
// and have already cancelled any previous timer.
func (c *Controller) scheduleTickLocked() {
	c.timer = time.AfterFunc(TickInterval(c.speed), c.tick)
}

// tick advances the cursor during autoplay. Reaching the last trade stops
// playback; it never wraps to the beginning.
func (c *Controller) tick() {
	c.mu.Lock()
	if c.closed || !c.playing || len(c.trades) == 0 {
		c.mu.Unlock()
		return
	}
	c.timer = nil

	if c.idx < len(c.trades)-1 {
		c.idx++
	}
	if c.idx >= len(c.trades)-1 {
		c.playing = false
	} else {
		c.scheduleTickLocked()
	}
	frame := c.frameLocked()
	c.mu.Unlock()

	c.emit(frame)
}

func (c *Controller) emit(f Frame) {
	if c.onFrame != nil {
		c.onFrame(f)
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
