package clock

import (
	"log/slog"
	"sync"
	"time"

	"screencap/internal/logging"
)

// Command drives the clock state.
type Command int

const (
	// Off halts ticking and resets the count to zero.
	Off Command = iota
	// On starts (or resumes) ticking once per second.
	On
	// Pause halts ticking and keeps the count.
	Pause
)

func (c Command) String() string {
	switch c {
	case On:
		return "on"
	case Pause:
		return "pause"
	default:
		return "off"
	}
}

// Tick reports the cumulative seconds counted since the last Off. Epoch is the
// number of Off commands the clock had processed when the tick was produced.
type Tick struct {
	Elapsed int
	Epoch   uint64
}

// Ticker is the periodic source the clock counts against.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Option customizes a Clock.
type Option func(*Clock)

// WithTickerFactory replaces the wall-clock ticker, typically in tests.
func WithTickerFactory(f TickerFactory) Option {
	return func(c *Clock) {
		if f != nil {
			c.newTicker = f
		}
	}
}

// WithInterval overrides the one-second tick period.
func WithInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// Clock is an independently scheduled elapsed-seconds counter. It is created
// once per process and commanded with fire-and-forget messages; ticks are
// delivered on Ticks with only the latest undelivered value retained.
type Clock struct {
	cmds      chan Command
	ticks     chan Tick
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	newTicker TickerFactory
	interval  time.Duration
	logger    *slog.Logger
}

// New starts the clock goroutine in the Off state.
func New(logger *slog.Logger, opts ...Option) *Clock {
	c := &Clock{
		cmds:      make(chan Command, 16),
		ticks:     make(chan Tick, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		newTicker: newRealTicker,
		interval:  time.Second,
		logger:    logging.NewComponentLogger(logger, "clock"),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run()
	return c
}

// Send enqueues cmd. Commands are applied in send order. Sending after Close
// is a no-op.
func (c *Clock) Send(cmd Command) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.cmds <- cmd:
	case <-c.done:
	}
}

func (c *Clock) On()    { c.Send(On) }
func (c *Clock) Off()   { c.Send(Off) }
func (c *Clock) Pause() { c.Send(Pause) }

// Ticks returns the tick channel. It is never closed.
func (c *Clock) Ticks() <-chan Tick {
	return c.ticks
}

// Close stops the clock goroutine and waits for it to exit.
func (c *Clock) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.stopped
}

type loopState struct {
	mode   Command
	count  int
	epoch  uint64
	ticker Ticker
	tickC  <-chan time.Time
}

func (c *Clock) run() {
	defer close(c.stopped)
	st := &loopState{mode: Off}
	defer c.stopTicker(st)

	for {
		select {
		case <-c.done:
			return
		case cmd := <-c.cmds:
			c.apply(st, cmd)
		case <-st.tickC:
			// A fired interval always counts. Commands queued behind it are
			// applied afterwards; an Off among them resets the count and
			// drains the published tick.
			st.count++
			c.publish(Tick{Elapsed: st.count, Epoch: st.epoch})
			c.applyPending(st)
		}
	}
}

func (c *Clock) applyPending(st *loopState) {
	for {
		select {
		case cmd := <-c.cmds:
			c.apply(st, cmd)
		default:
			return
		}
	}
}

func (c *Clock) apply(st *loopState, cmd Command) {
	switch cmd {
	case On:
		if st.mode == On {
			return
		}
		st.ticker = c.newTicker(c.interval)
		st.tickC = st.ticker.C()
		st.mode = On
	case Pause:
		c.stopTicker(st)
		if st.mode == On {
			st.mode = Pause
		}
	default:
		c.stopTicker(st)
		st.mode = Off
		st.count = 0
		st.epoch++
		select {
		case <-c.ticks:
		default:
		}
	}
	c.logger.Debug("clock command applied",
		logging.String("command", cmd.String()),
		logging.Int("count", st.count),
		logging.Uint64("epoch", st.epoch),
	)
}

func (c *Clock) stopTicker(st *loopState) {
	if st.ticker != nil {
		st.ticker.Stop()
		st.ticker = nil
	}
	st.tickC = nil
}

// publish keeps only the newest tick when the consumer lags.
func (c *Clock) publish(t Tick) {
	select {
	case c.ticks <- t:
		return
	default:
	}
	select {
	case <-c.ticks:
	default:
	}
	select {
	case c.ticks <- t:
	default:
	}
}
