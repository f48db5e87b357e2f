package game

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkstep.io/internal/guard"
	"parkstep.io/internal/logging"
	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/replay"
	"parkstep.io/internal/sim/snapshot"
	"parkstep.io/internal/sim/world"
)

const DefaultTickRateHz = 40

// Network is the session side the tick loop drives.
type Network interface {
	actions.Session
	// Update drains packets received since the last tick.
	Update()
	// Ready reports whether a client has loaded the map and heard a tick.
	Ready() bool
	ServerTick() uint32
	SendTick()
	// CheckDesync compares local state against the server's tick history.
	CheckDesync() bool
	Close() error
}

type Options struct {
	TickRateHz int
	// DesyncDebugging links a snapshot to every tick so a desync can be
	// diffed against the server's copy.
	DesyncDebugging bool

	Replay  *replay.Manager
	Hooks   actions.Hooks
	Errors  actions.ErrorSink
	Journal actions.Journal
	Guard   *guard.Guard
	Log     logrus.FieldLogger
}

// Context owns one simulation and everything that touches it between
// ticks. It is driven from a single goroutine: Run, or UpdateLogic in tests.
type Context struct {
	World      *world.World
	Dispatcher *actions.Dispatcher
	Snapshots  *snapshot.Engine
	Replay     *replay.Manager
	Network    Network

	cfg    Options
	log    *logrus.Entry
	submit chan actions.Action
	calls  chan call
	stop   chan struct{}
	once   sync.Once
}

func New(w *world.World, opts Options) *Context {
	if opts.TickRateHz <= 0 {
		opts.TickRateHz = DefaultTickRateHz
	}
	log := logging.Component(opts.Log, "game")
	c := &Context{
		World:     w,
		Snapshots: snapshot.NewEngine(opts.Log),
		Replay:    opts.Replay,
		cfg:       opts,
		log:       log,
		submit:    make(chan actions.Action, 256),
		calls:     make(chan call),
		stop:      make(chan struct{}),
	}
	dopts := actions.Options{
		Hooks:   opts.Hooks,
		Errors:  opts.Errors,
		Journal: opts.Journal,
		Guard:   opts.Guard,
		Log:     opts.Log,
	}
	if opts.Replay != nil {
		dopts.Replay = opts.Replay
	}
	c.Dispatcher = actions.NewDispatcher(w, dopts)
	return c
}

// AttachNetwork binds the session to the dispatcher.
func (c *Context) AttachNetwork(n Network) {
	c.Network = n
	c.Dispatcher.SetSession(n)
}

func (c *Context) mode() protocol.Mode {
	if c.Network == nil {
		return protocol.ModeNone
	}
	return c.Network.Mode()
}

// UpdateLogic advances the simulation by one tick. It reports false when
// a client is holding back because it has caught up with the server.
func (c *Context) UpdateLogic() (bool, error) {
	if c.Network != nil {
		c.Network.Update()
	}
	mode := c.mode()
	w := c.World
	tick := w.Tick()

	if mode == protocol.ModeClient {
		if !c.Network.Ready() || tick >= c.Network.ServerTick() {
			return false, nil
		}
	}

	if c.cfg.DesyncDebugging && mode != protocol.ModeNone {
		snap := c.Snapshots.CreateSnapshot()
		if err := c.Snapshots.Capture(snap, w); err != nil {
			return false, eris.Wrapf(err, "capture tick %d", tick)
		}
		c.Snapshots.LinkSnapshot(snap, tick, w.SRand0())
	}

	switch mode {
	case protocol.ModeServer:
		c.Network.SendTick()
	case protocol.ModeClient:
		if c.Network.CheckDesync() {
			c.log.WithField("tick", tick).Warn("desync detected")
		}
	}

	w.UpdateEntities()

	w.SetInUpdate(true)
	c.Dispatcher.ProcessQueue(tick)
	var err error
	if c.Replay != nil {
		err = c.Replay.Update(c.Dispatcher)
	}
	w.SetInUpdate(false)

	w.AdvanceTick()
	if err != nil {
		return true, eris.Wrapf(err, "replay at tick %d", tick)
	}
	return true, nil
}

// StepOnce runs UpdateLogic and returns the tick it ran plus the entity
// digest of the resulting state.
func (c *Context) StepOnce() (uint32, string, error) {
	tick := c.World.Tick()
	if _, err := c.UpdateLogic(); err != nil {
		return tick, "", err
	}
	var snap snapshot.Snapshot
	if err := c.Snapshots.Capture(&snap, c.World); err != nil {
		return tick, "", err
	}
	return tick, snapshot.Digest(&snap), nil
}

// Submit hands an action from another goroutine to the tick loop. It
// returns false when the buffer is full.
func (c *Context) Submit(a actions.Action) bool {
	select {
	case c.submit <- a:
		return true
	default:
		return false
	}
}

type call struct {
	fn   func(*Context)
	done chan struct{}
}

// ErrStopped is returned by Call once the loop has ended.
var ErrStopped = eris.New("game loop stopped")

// Call runs fn on the loop goroutine between two ticks and waits for it.
func (c *Context) Call(ctx context.Context, fn func(*Context)) error {
	cl := call{fn: fn, done: make(chan struct{})}
	select {
	case c.calls <- cl:
	case <-c.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cl.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the simulation at the configured tick rate until ctx ends,
// Stop is called or an action requests a quit.
func (c *Context) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(c.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	playing := c.Replay != nil && (c.Replay.IsPlayingBack() || c.Replay.IsNormalising())
	var pending []actions.Action
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		case a := <-c.submit:
			pending = append(pending, a)
		case cl := <-c.calls:
			cl.fn(c)
			close(cl.done)
		case <-ticker.C:
			for _, a := range pending {
				c.Dispatcher.Execute(a)
			}
			pending = pending[:0]
			if _, err := c.UpdateLogic(); err != nil {
				return err
			}
			if mode, ok := c.World.QuitRequested(); ok {
				c.log.WithField("mode", mode).Info("quit requested")
				return nil
			}
			if playing && c.Replay.Mode() == replay.ModeNone {
				c.log.WithField("tick", c.World.Tick()).Info("replay finished")
				return nil
			}
		}
	}
}

// Stop ends Run. It is safe to call from any goroutine.
func (c *Context) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Close stops the loop and shuts the network session down.
func (c *Context) Close() error {
	c.Stop()
	if c.Network != nil {
		return c.Network.Close()
	}
	return nil
}
