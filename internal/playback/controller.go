// Package playback owns the animation clock that drives windowed views over a
// recorded waveform: current time, window length, step, play/pause, seek and
// loop-at-end.
package playback

import (
	"math"
	"sync"
	"time"

	"github.com/banshee-data/ecgscope/internal/monitoring"
	"github.com/banshee-data/ecgscope/internal/timeutil"
)

const (
	DefaultWindowSeconds = 5.0
	DefaultStepSeconds   = 0.1
	DefaultSpeed         = 100 * time.Millisecond
)

var logger = monitoring.Component("playback")

// LoopMode selects where continuous playback wraps back to zero.
type LoopMode int

const (
	// LoopWindow wraps once the visible window would run past the end.
	LoopWindow LoopMode = iota
	// LoopFull wraps once the current time itself reaches the end.
	LoopFull
)

func (m LoopMode) String() string {
	if m == LoopFull {
		return "full"
	}
	return "window"
}

// State is a snapshot of the playback clock. Seq increases with every change
// to the controller, so a consumer can drop a snapshot older than one it has
// already applied.
type State struct {
	Seq           uint64        `json:"seq"`
	CurrentTime   float64       `json:"current_time"`
	WindowSeconds float64       `json:"window_seconds"`
	StepSeconds   float64       `json:"step_seconds"`
	Playing       bool          `json:"is_playing"`
	Speed         time.Duration `json:"-"`
	SpeedMillis   int64         `json:"speed_ms"`
	Duration      float64       `json:"duration"`
	Loop          string        `json:"loop"`
}

// Range is a half-open sample interval [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns End-Start, never negative.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether idx lies in [Start, End).
func (r Range) Contains(idx int) bool {
	return idx >= r.Start && idx < r.End
}

// Listener is notified with the new state after every tick, seek and
// play/pause transition. Listeners run outside the controller lock.
type Listener func(State)

// Controller is the playback state machine. At most one tick loop runs per
// controller; Pause and Seek invalidate any tick that was already delivered
// but not yet applied.
type Controller struct {
	clock timeutil.Clock

	mu        sync.Mutex
	current   float64
	window    float64
	step      float64
	speed     time.Duration
	duration  float64
	loop      LoopMode
	playing   bool
	gen       uint64
	seq       uint64
	ticker    timeutil.Ticker
	done      chan struct{}
	listeners []Listener
}

// Option configures a Controller.
type Option func(*Controller)

// WithWindow sets the initial window length in seconds.
func WithWindow(seconds float64) Option {
	return func(c *Controller) {
		if seconds > 0 {
			c.window = seconds
		}
	}
}

// WithStep sets the initial step in seconds.
func WithStep(seconds float64) Option {
	return func(c *Controller) {
		if seconds > 0 {
			c.step = seconds
		}
	}
}

// WithSpeed sets the initial tick interval.
func WithSpeed(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.speed = d
		}
	}
}

// NewController creates a stopped controller at t=0. A nil clock selects the
// real clock.
func NewController(clock timeutil.Clock, duration float64, opts ...Option) *Controller {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	c := &Controller{
		clock:    clock,
		window:   DefaultWindowSeconds,
		step:     DefaultStepSeconds,
		speed:    DefaultSpeed,
		duration: math.Max(0, duration),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Subscribe registers a listener.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// State returns a snapshot of the clock.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	return State{
		Seq:           c.seq,
		CurrentTime:   c.current,
		WindowSeconds: c.window,
		StepSeconds:   c.step,
		Playing:       c.playing,
		Speed:         c.speed,
		SpeedMillis:   c.speed.Milliseconds(),
		Duration:      c.duration,
		Loop:          c.loop.String(),
	}
}

// Play starts periodic ticks. It is a no-op when already playing.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return
	}
	c.playing = true
	c.gen++
	c.seq++
	gen := c.gen
	c.ticker = c.clock.NewTicker(c.speed)
	c.done = make(chan struct{})
	go c.run(gen, c.ticker, c.done)
	st := c.stateLocked()
	c.mu.Unlock()

	logger.Printf("play t=%.3f speed=%v step=%.3f", st.CurrentTime, st.Speed, st.StepSeconds)
	c.notify(st)
}

// Pause stops periodic ticks. It is idempotent.
func (c *Controller) Pause() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.seq++
	st := c.stateLocked()
	c.mu.Unlock()

	logger.Printf("pause t=%.3f", st.CurrentTime)
	c.notify(st)
}

// Stop is an alias of Pause.
func (c *Controller) Stop() { c.Pause() }

// stopLocked cancels the tick loop. Bumping the generation discards a tick
// the loop may already hold.
func (c *Controller) stopLocked() {
	c.playing = false
	c.gen++
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

// Seek stops playback and moves to t clamped to [0, duration].
func (c *Controller) Seek(t float64) {
	c.mu.Lock()
	if c.playing {
		c.stopLocked()
	}
	c.current = clamp(t, 0, c.duration)
	c.seq++
	st := c.stateLocked()
	c.mu.Unlock()

	c.notify(st)
}

// SetWindow changes the window length; it applies from the next render.
func (c *Controller) SetWindow(seconds float64) {
	if seconds <= 0 {
		return
	}
	c.mu.Lock()
	c.window = seconds
	c.seq++
	c.mu.Unlock()
}

// SetStep changes the per-tick advance.
func (c *Controller) SetStep(seconds float64) {
	if seconds <= 0 {
		return
	}
	c.mu.Lock()
	c.step = seconds
	c.seq++
	c.mu.Unlock()
}

// SetSpeed changes the tick interval, resetting the live ticker if playing.
func (c *Controller) SetSpeed(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = d
	c.seq++
	if c.playing && c.ticker != nil {
		c.ticker.Reset(d)
	}
}

// SetLoopMode selects the wrap boundary for subsequent ticks.
func (c *Controller) SetLoopMode(m LoopMode) {
	c.mu.Lock()
	c.loop = m
	c.seq++
	c.mu.Unlock()
}

// SetDuration changes the recording length. Current time is clamped but
// otherwise kept.
func (c *Controller) SetDuration(seconds float64) {
	c.mu.Lock()
	c.duration = math.Max(0, seconds)
	c.current = clamp(c.current, 0, c.duration)
	c.seq++
	c.mu.Unlock()
}

// Reset stops playback and rewinds to zero with a new total duration.
func (c *Controller) Reset(duration float64) {
	c.mu.Lock()
	if c.playing {
		c.stopLocked()
	}
	c.duration = math.Max(0, duration)
	c.current = 0
	c.seq++
	st := c.stateLocked()
	c.mu.Unlock()

	c.notify(st)
}

// Visible returns the sample range covered by the current window:
// start = floor(t*rate), end = min(start + floor(window*rate), leadLen).
func (c *Controller) Visible(rate, leadLen int) Range {
	return VisibleRange(c.State(), rate, leadLen)
}

// VisibleRange computes the visible sample range for a state snapshot.
func VisibleRange(st State, rate, leadLen int) Range {
	if rate <= 0 || leadLen <= 0 {
		return Range{}
	}
	start := int(math.Floor(st.CurrentTime * float64(rate)))
	if start < 0 {
		start = 0
	}
	if start > leadLen {
		start = leadLen
	}
	end := start + int(math.Floor(st.WindowSeconds*float64(rate)))
	if end > leadLen {
		end = leadLen
	}
	return Range{Start: start, End: end}
}

func (c *Controller) run(gen uint64, ticker timeutil.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			if !c.tick(gen) {
				return
			}
		}
	}
}

// tick advances the clock by one step. It returns false when the loop that
// received the tick is no longer current.
func (c *Controller) tick(gen uint64) bool {
	c.mu.Lock()
	if !c.playing || c.gen != gen {
		c.mu.Unlock()
		return false
	}

	c.current += c.step
	bound := c.duration - c.window
	if c.loop == LoopFull {
		bound = c.duration
	}
	if c.current >= bound {
		c.current = 0
	}
	c.seq++
	st := c.stateLocked()
	c.mu.Unlock()

	c.notify(st)
	return true
}

func (c *Controller) notify(st State) {
	c.mu.Lock()
	ls := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, l := range ls {
		l(st)
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
